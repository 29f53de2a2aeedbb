package callbacks

import (
	"time"

	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/tool"

	"deckforge/internal/agents/state"
	"deckforge/internal/metrics"
	"deckforge/pkg/logger"
)

// RecordToolStartTimeBeforeToolCallback records execution start time for latency metrics
func RecordToolStartTimeBeforeToolCallback() llmagent.BeforeToolCallback {
	return func(ctx tool.Context, t tool.Tool, args map[string]any) (map[string]any, error) {
		_ = state.SetToolStartTime(ctx.State(), ctx.FunctionCallID(), time.Now())
		return nil, nil
	}
}

// AuditLogAfterToolCallback logs every tool execution and records its latency.
func AuditLogAfterToolCallback() llmagent.AfterToolCallback {
	return func(ctx tool.Context, t tool.Tool, args, result map[string]any, err error) (map[string]any, error) {
		toolName := t.Name()
		log := logger.Get().With(
			"component", "tool_audit",
			"tool", toolName,
			"agent", ctx.AgentName(),
			"run_id", state.GetRunID(ctx.ReadonlyState()),
		)

		var latency time.Duration
		if started, ok := state.GetToolStartTime(ctx.ReadonlyState(), ctx.FunctionCallID()); ok {
			latency = time.Since(started)
		}

		count := state.IncrementToolCallCount(ctx.State())
		metrics.RecordToolExecution(toolName, latency, err)

		if err != nil {
			log.Warnf("Tool %s failed after %v: %v", toolName, latency, err)
		} else {
			log.Debugf("Tool %s executed in %v (call #%d)", toolName, latency, count)
		}

		// nil leaves the result to later callbacks
		return nil, nil
	}
}

// ErrorAsResultAfterToolCallback hands tool failures back to the model as an
// "error" field, so the agent can try another query instead of aborting.
func ErrorAsResultAfterToolCallback() llmagent.AfterToolCallback {
	return func(ctx tool.Context, t tool.Tool, args, result map[string]any, err error) (map[string]any, error) {
		if err == nil {
			return nil, nil
		}
		return map[string]any{"error": err.Error()}, nil
	}
}
