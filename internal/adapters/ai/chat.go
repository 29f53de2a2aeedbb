package ai

import (
	"context"
	"encoding/json"
	"strings"
)

// ChatProvider is a model that can answer a conversation and request tool
// calls. The research agents reach it through the ADK model adapter.
type ChatProvider interface {
	Provider

	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is one model turn: the conversation so far plus the tools the
// agent may call (web_search, fetch_page, the delegated researcher, ...).
type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

type Message struct {
	Role      MessageRole
	Content   string
	ToolCalls []ToolCall
	// ToolCallID links a RoleTool message to the call it answers.
	ToolCallID string
	Name       string
}

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ToolDefinition advertises a tool with a JSON schema for its arguments.
// Type is always "function".
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ChatResponse struct {
	ID      string
	Model   string
	Choices []Choice
	Usage   Usage
}

// First returns the choice the agents act on. Providers are always asked
// for a single candidate.
func (r *ChatResponse) First() (Choice, bool) {
	if r == nil || len(r.Choices) == 0 {
		return Choice{}, false
	}
	return r.Choices[0], true
}

type Choice struct {
	Index        int
	Message      Message
	FinishReason FinishReason
}

// FinishReason mirrors the provider's stop reason. Length means the answer
// hit MaxTokens and is incomplete.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonToolCalls     FinishReason = "tool_calls"
	FinishReasonContentFilter FinishReason = "content_filter"
)

type ToolCall struct {
	ID       string
	Type     string
	Function FunctionCall
}

// FunctionCall carries arguments as the raw JSON text the model produced.
type FunctionCall struct {
	Name      string
	Arguments string
}

// Args decodes the arguments. Blank arguments decode to an empty map.
func (f FunctionCall) Args() (map[string]any, error) {
	args := map[string]any{}
	if strings.TrimSpace(f.Arguments) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(f.Arguments), &args); err != nil {
		return map[string]any{}, err
	}
	return args, nil
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
