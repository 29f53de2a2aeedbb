package callbacks

import (
	"sync"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"deckforge/pkg/logger"
)

// StepBudget bounds the number of model calls an agent makes within one
// invocation. A shared budget tracks every invocation separately, so an
// agent reused as a tool gets a fresh allowance each time it is called.
type StepBudget struct {
	agent string
	max   int

	mu        sync.Mutex
	used      map[string]int
	total     int
	exhausted bool
}

// NewStepBudget creates a budget of max model calls per invocation.
func NewStepBudget(agentName string, max int) *StepBudget {
	return &StepBudget{agent: agentName, max: max, used: make(map[string]int)}
}

// take consumes one step of the invocation and reports whether it fit.
func (b *StepBudget) take(invocationID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.used[invocationID] >= b.max {
		b.exhausted = true
		return false
	}
	b.used[invocationID]++
	b.total++
	return true
}

// Steps returns the model calls made across all invocations.
func (b *StepBudget) Steps() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Exhausted reports whether any invocation ran out of steps.
func (b *StepBudget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exhausted
}

// Max returns the per-invocation limit.
func (b *StepBudget) Max() int { return b.max }

// StepLimitBeforeModel answers with fallback instead of calling the model
// once the invocation has used up its budget. A text answer ends the agent.
func StepLimitBeforeModel(b *StepBudget, fallback string) llmagent.BeforeModelCallback {
	return func(ctx agent.CallbackContext, req *model.LLMRequest) (*model.LLMResponse, error) {
		if b.take(ctx.InvocationID()) {
			return nil, nil
		}

		logger.Get().With("component", "step_budget", "agent", ctx.AgentName()).
			Warnf("Step budget of %d exhausted, stopping agent", b.max)

		return &model.LLMResponse{
			Content:      genai.NewContentFromText(fallback, genai.RoleModel),
			TurnComplete: true,
		}, nil
	}
}

// StopWhenBeforeModel ends the agent with text as soon as stop reports true.
func StopWhenBeforeModel(stop func() bool, text string) llmagent.BeforeModelCallback {
	return func(ctx agent.CallbackContext, req *model.LLMRequest) (*model.LLMResponse, error) {
		if !stop() {
			return nil, nil
		}
		return &model.LLMResponse{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			TurnComplete: true,
		}, nil
	}
}
