package state

import (
	"time"

	"google.golang.org/adk/session"
)

// State key prefixes (from ADK)
const (
	KeyPrefixApp  = "app:"  // Application-level (shared across all users)
	KeyPrefixUser = "user:" // User-level (shared across user's sessions)
	KeyPrefixTemp = "temp:" // Temporary (not persisted)
)

const (
	keyToolCallCount = KeyPrefixTemp + "tool_call_count"
	keyToolStart     = KeyPrefixTemp + "tool_start:"
	keyAgentStart    = KeyPrefixTemp + "agent_start"
	keyRunID         = KeyPrefixTemp + "run_id"
)

// SetRunID stores the pipeline run the session belongs to.
func SetRunID(state session.State, runID string) error {
	return state.Set(keyRunID, runID)
}

// GetRunID returns the pipeline run ID, or "" when unset.
func GetRunID(state session.ReadonlyState) string {
	val, err := state.Get(keyRunID)
	if err != nil {
		return ""
	}
	id, _ := val.(string)
	return id
}

// SetAgentStartTime records when the current agent invocation began.
func SetAgentStartTime(state session.State, t time.Time) error {
	return state.Set(keyAgentStart, t)
}

// GetAgentStartTime returns the agent start time, if recorded.
func GetAgentStartTime(state session.ReadonlyState) (time.Time, bool) {
	return timeValue(state, keyAgentStart)
}

// SetToolStartTime records when the tool call with the given ID began.
func SetToolStartTime(state session.State, callID string, t time.Time) error {
	return state.Set(keyToolStart+callID, t)
}

// GetToolStartTime returns the start time of a tool call, if recorded.
func GetToolStartTime(state session.ReadonlyState, callID string) (time.Time, bool) {
	return timeValue(state, keyToolStart+callID)
}

// IncrementToolCallCount bumps the per-session tool call counter.
func IncrementToolCallCount(state session.State) int {
	count := GetToolCallCount(state) + 1
	_ = state.Set(keyToolCallCount, count)
	return count
}

// GetToolCallCount returns how many tools ran in this session.
func GetToolCallCount(state session.ReadonlyState) int {
	val, err := state.Get(keyToolCallCount)
	if err != nil {
		return 0
	}
	count, _ := val.(int)
	return count
}

func timeValue(state session.ReadonlyState, key string) (time.Time, bool) {
	val, err := state.Get(key)
	if err != nil {
		return time.Time{}, false
	}
	t, ok := val.(time.Time)
	return t, ok
}
