package agents

import (
	"context"
	"strings"
	"time"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	adksession "google.golang.org/adk/session"
	"google.golang.org/genai"

	"deckforge/pkg/errors"
	"deckforge/pkg/logger"
)

const appName = "deckforge_research"

// ExecutionOutput contains the result of agent execution
type ExecutionOutput struct {
	// FinalText is the last complete text the root agent produced.
	FinalText string
	SessionID string

	ToolCallCount int
	InputTokens   int
	OutputTokens  int
	Duration      time.Duration
}

// AgentRunner executes one agent graph in a private in-memory session. A
// runner is created per execution, so concurrent runs share no session state.
type AgentRunner struct {
	log *logger.Logger
}

// NewAgentRunner creates a new agent runner
func NewAgentRunner() *AgentRunner {
	return &AgentRunner{log: logger.Get().With("component", "agent_runner")}
}

// Execute runs ag on prompt until the root agent produces its final answer.
func (e *AgentRunner) Execute(ctx context.Context, ag agent.Agent, userID, prompt string) (*ExecutionOutput, error) {
	startTime := time.Now()
	sessionService := adksession.InMemoryService()

	runnerInstance, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          ag,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ADK runner")
	}

	createResp, err := sessionService.Create(ctx, &adksession.CreateRequest{
		AppName: appName,
		UserID:  userID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	sessionID := createResp.Session.ID()

	log := e.log.With("agent", ag.Name(), "session", sessionID)
	log.Debugf("Starting agent execution")

	output := &ExecutionOutput{SessionID: sessionID}
	userContent := genai.NewContentFromText(prompt, genai.RoleUser)
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}

	for event, err := range runnerInstance.Run(ctx, userID, sessionID, userContent, runConfig) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Wrap(ctxErr, "agent execution interrupted")
			}
			return nil, errors.Wrap(err, "agent execution failed")
		}
		if event == nil || event.LLMResponse.Partial {
			continue
		}

		if event.UsageMetadata != nil {
			output.InputTokens += int(event.UsageMetadata.PromptTokenCount)
			output.OutputTokens += int(event.UsageMetadata.CandidatesTokenCount)
		}

		if event.LLMResponse.Content == nil {
			continue
		}

		var text strings.Builder
		for _, part := range event.LLMResponse.Content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil {
				output.ToolCallCount++
				log.Debugf("Tool call: %s", part.FunctionCall.Name)
			}
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
		}

		if event.Author == ag.Name() && text.Len() > 0 {
			output.FinalText = text.String()
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "agent execution interrupted")
	}

	output.Duration = time.Since(startTime)
	log.Infof("Agent execution complete: duration=%v tokens_in=%d tokens_out=%d tools=%d",
		output.Duration, output.InputTokens, output.OutputTokens, output.ToolCallCount)

	return output, nil
}
