package ai

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckforge/pkg/errors"
)

func newOpenAITestServer(t *testing.T, status int, body string, captured *map[string]any) *OpenAIProvider {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		if captured != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1/", MaxRetries: 0}, nil)
	require.NoError(t, err)
	return p
}

func TestOpenAIProvider_Chat(t *testing.T) {
	var sent map[string]any
	p := newOpenAITestServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4o-mini",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "web_search", "arguments": "{\"query\":\"q\"}"}}]
			}
		}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
	}`, &sent)

	resp, err := p.Chat(t.Context(), ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_0", Type: "function", Function: FunctionCall{Name: "web_search", Arguments: "{}"}}}},
			{Role: RoleTool, ToolCallID: "call_0", Content: `{"results":[]}`},
		},
		Tools: []ToolDefinition{{Type: "function", Function: FunctionDefinition{
			Name:       "web_search",
			Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
		}}},
		MaxTokens: 256,
	})
	require.NoError(t, err)

	require.Len(t, resp.Choices, 1)
	assert.Equal(t, FinishReasonToolCalls, resp.Choices[0].FinishReason)
	require.Len(t, resp.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.Choices[0].Message.ToolCalls[0].ID)
	assert.Equal(t, `{"query":"q"}`, resp.Choices[0].Message.ToolCalls[0].Function.Arguments)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	msgs, ok := sent["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 4)
	assert.Equal(t, "tool", msgs[3].(map[string]any)["role"])
	assert.Equal(t, "call_0", msgs[3].(map[string]any)["tool_call_id"])
	assert.Len(t, sent["tools"], 1)
}

func TestOpenAIProvider_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, errors.ErrRateLimitExceeded},
		{"server error", http.StatusBadGateway, errors.ErrUnavailable},
		{"bad request", http.StatusBadRequest, errors.ErrProviderFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newOpenAITestServer(t, tt.status, `{"error":{"message":"nope","type":"x"}}`, nil)
			_, err := p.Chat(t.Context(), ChatRequest{Model: "gpt-4o-mini", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIConfig{}, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestCostTracker(t *testing.T) {
	ct := NewCostTracker()
	ctx, usage := ContextWithUsage(t.Context())

	cost := ct.RecordUsage(ctx, "gpt-4o-mini", 1000, 1000)
	assert.Equal(t, "0.00075", cost.String())

	ct.RecordUsage(ctx, "unknown-model", 10, 10)

	assert.Equal(t, "0.00075", ct.TotalCost().String())
	assert.Equal(t, 2, usage.Summary().Calls)
	assert.Equal(t, 1010, usage.Summary().InputTokens)
	assert.Nil(t, UsageFromContext(t.Context()))
}

func TestChatResponse_FirstAndArgs(t *testing.T) {
	var empty *ChatResponse
	_, ok := empty.First()
	assert.False(t, ok)

	resp := &ChatResponse{Choices: []Choice{{Message: Message{ToolCalls: []ToolCall{
		{Function: FunctionCall{Name: "web_search", Arguments: `{"query":"scooters Vietnam"}`}},
		{Function: FunctionCall{Name: "fetch_page", Arguments: " "}},
		{Function: FunctionCall{Name: "fetch_page", Arguments: "{url"}},
	}}}}}
	choice, ok := resp.First()
	require.True(t, ok)

	args, err := choice.Message.ToolCalls[0].Function.Args()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"query": "scooters Vietnam"}, args)

	args, err = choice.Message.ToolCalls[1].Function.Args()
	require.NoError(t, err)
	assert.Empty(t, args)

	args, err = choice.Message.ToolCalls[2].Function.Args()
	assert.Error(t, err)
	assert.Empty(t, args)
}
