package events

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"deckforge/internal/adapters/kafka"
)

// PipelineEvent describes the outcome of one research or edit run.
type PipelineEvent struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
	Version    string    `json:"version"`
	DurationMS int64     `json:"duration_ms"`

	Stage  string `json:"stage,omitempty"`
	Reason string `json:"reason,omitempty"`
	Detail string `json:"detail,omitempty"`

	Sources      int      `json:"sources,omitempty"`
	Slides       int      `json:"slides,omitempty"`
	LLMCalls     int      `json:"llm_calls,omitempty"`
	InputTokens  int      `json:"input_tokens,omitempty"`
	OutputTokens int      `json:"output_tokens,omitempty"`
	CostUSD      string   `json:"cost_usd,omitempty"`
	Fallbacks    []string `json:"fallbacks,omitempty"`
}

// NewPipelineEvent creates an event with defaults
func NewPipelineEvent(eventType, runID string, duration time.Duration) *PipelineEvent {
	return &PipelineEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		RunID:      runID,
		Timestamp:  time.Now().UTC(),
		Source:     "deckforge",
		Version:    "1.0",
		DurationMS: duration.Milliseconds(),
	}
}

// Failed reports whether the event describes a failed run.
func (e *PipelineEvent) Failed() bool {
	return e.Type == kafka.EventResearchFailed || e.Type == kafka.EventEditFailed
}

// SanitizeUTF8 removes invalid UTF-8 sequences. Model and provider error
// text can carry broken bytes that JSON consumers reject.
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
