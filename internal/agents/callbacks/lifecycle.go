package callbacks

import (
	"time"

	"google.golang.org/adk/agent"
	"google.golang.org/genai"

	"deckforge/internal/agents/state"
	"deckforge/pkg/logger"
)

// StartBeforeAgentCallback stamps the invocation start and tags the session
// with the pipeline run.
func StartBeforeAgentCallback(runID string) agent.BeforeAgentCallback {
	return func(ctx agent.CallbackContext) (*genai.Content, error) {
		_ = state.SetAgentStartTime(ctx.State(), time.Now())
		if runID != "" {
			_ = state.SetRunID(ctx.State(), runID)
		}

		logger.Get().With("agent", ctx.AgentName(), "session", ctx.SessionID(), "run_id", runID).
			Debug("Agent invocation started")
		return nil, nil
	}
}

// LogAfterAgentCallback logs the invocation duration and tool usage.
func LogAfterAgentCallback() agent.AfterAgentCallback {
	return func(ctx agent.CallbackContext) (*genai.Content, error) {
		log := logger.Get().With("agent", ctx.AgentName(), "session", ctx.SessionID())

		var duration time.Duration
		if started, ok := state.GetAgentStartTime(ctx.ReadonlyState()); ok {
			duration = time.Since(started)
		}

		log.Infof("Agent %s finished in %v (%d tool calls)",
			ctx.AgentName(), duration, state.GetToolCallCount(ctx.ReadonlyState()))
		return nil, nil
	}
}
