package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckforge/internal/adapters/kafka"
)

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "valid UTF-8 string unchanged",
			input:    "Thị trường xe máy điện",
			expected: "Thị trường xe máy điện",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "invalid UTF-8 bytes removed",
			input:    "Hello\xffWorld",
			expected: "HelloWorld",
		},
		{
			name:     "provider error with invalid bytes",
			input:    "openai: 502\xfe bad gateway\xfd",
			expected: "openai: 502 bad gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeUTF8(tt.input))
		})
	}
}

func TestNewPipelineEvent(t *testing.T) {
	e := NewPipelineEvent(kafka.EventResearchFailed, "run-1", 1500*time.Millisecond)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "run-1", e.RunID)
	assert.Equal(t, int64(1500), e.DurationMS)
	assert.True(t, e.Failed())
	assert.False(t, NewPipelineEvent(kafka.EventResearchRefused, "run-2", 0).Failed())
}

func TestMemoryPublisher(t *testing.T) {
	var p MemoryPublisher
	require.NoError(t, p.Publish(context.Background(), NewPipelineEvent(kafka.EventEditCompleted, "r", 0)))
	require.NoError(t, NoopPublisher{}.Publish(context.Background(), nil))

	events := p.Events()
	require.Len(t, events, 1)
	assert.Equal(t, kafka.EventEditCompleted, events[0].Type)
}
