package adk

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"deckforge/internal/adapters/ai"
	"deckforge/pkg/errors"
	"deckforge/pkg/logger"
)

// ModelAdapter adapts an ai.ChatProvider to ADK's model.LLM interface.
type ModelAdapter struct {
	provider  ai.ChatProvider
	modelName string
	maxTokens int
	log       *logger.Logger
}

// NewModelAdapter creates a new ADK model adapter.
func NewModelAdapter(provider ai.ChatProvider, modelName string, maxTokens int) *ModelAdapter {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &ModelAdapter{
		provider:  provider,
		modelName: modelName,
		maxTokens: maxTokens,
		log:       logger.Get().With("component", "model_adapter", "model", modelName),
	}
}

// Name returns the model name.
func (m *ModelAdapter) Name() string {
	return m.modelName
}

// GenerateContent implements model.LLM. Streaming is answered with a single
// complete response.
func (m *ModelAdapter) GenerateContent(
	ctx context.Context,
	req *model.LLMRequest,
	_ bool,
) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		chatReq, err := m.toChatRequest(req)
		if err != nil {
			yield(nil, err)
			return
		}

		m.log.WithContext(ctx).Debugw("calling llm", "messages", len(chatReq.Messages), "tools", len(chatReq.Tools))

		resp, err := m.provider.Chat(ctx, chatReq)
		if err != nil {
			yield(nil, errors.Wrap(err, "chat provider failed"))
			return
		}

		yield(m.toLLMResponse(resp), nil)
	}
}

func (m *ModelAdapter) toChatRequest(req *model.LLMRequest) (ai.ChatRequest, error) {
	chatReq := ai.ChatRequest{
		Model:     m.modelName,
		MaxTokens: m.maxTokens,
	}
	if req == nil {
		return chatReq, errors.Wrap(errors.ErrInvalidInput, "nil llm request")
	}

	if cfg := req.Config; cfg != nil {
		if cfg.Temperature != nil {
			chatReq.Temperature = float64(*cfg.Temperature)
		}
		if cfg.MaxOutputTokens > 0 {
			chatReq.MaxTokens = int(cfg.MaxOutputTokens)
		}
		if sys := contentText(cfg.SystemInstruction); sys != "" {
			chatReq.Messages = append(chatReq.Messages, ai.Message{Role: ai.RoleSystem, Content: sys})
		}
		for _, t := range cfg.Tools {
			if t == nil {
				continue
			}
			for _, fd := range t.FunctionDeclarations {
				def, err := toToolDefinition(fd)
				if err != nil {
					return chatReq, err
				}
				chatReq.Tools = append(chatReq.Tools, def)
			}
		}
	}

	for _, content := range req.Contents {
		chatReq.Messages = append(chatReq.Messages, toMessages(content)...)
	}

	return chatReq, nil
}

// toMessages maps one genai content to chat messages. A content carrying
// function responses becomes one tool message per response.
func toMessages(content *genai.Content) []ai.Message {
	if content == nil {
		return nil
	}

	var (
		text      []string
		toolCalls []ai.ToolCall
		toolMsgs  []ai.Message
	)
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.FunctionCall != nil:
			args, _ := json.Marshal(part.FunctionCall.Args)
			toolCalls = append(toolCalls, ai.ToolCall{
				ID:   callID(part.FunctionCall.ID, part.FunctionCall.Name),
				Type: "function",
				Function: ai.FunctionCall{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		case part.FunctionResponse != nil:
			body, err := json.Marshal(part.FunctionResponse.Response)
			if err != nil {
				body = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
			}
			toolMsgs = append(toolMsgs, ai.Message{
				Role:       ai.RoleTool,
				Content:    string(body),
				ToolCallID: callID(part.FunctionResponse.ID, part.FunctionResponse.Name),
				Name:       part.FunctionResponse.Name,
			})
		case part.Text != "":
			text = append(text, part.Text)
		}
	}

	if len(toolMsgs) > 0 {
		return toolMsgs
	}

	role := ai.RoleUser
	switch content.Role {
	case string(genai.RoleModel):
		role = ai.RoleAssistant
	case "system":
		role = ai.RoleSystem
	}

	if len(text) == 0 && len(toolCalls) == 0 {
		return nil
	}
	return []ai.Message{{
		Role:      role,
		Content:   strings.Join(text, "\n"),
		ToolCalls: toolCalls,
	}}
}

// callID keeps tool calls and responses paired even when the model omitted an ID.
func callID(id, name string) string {
	if id != "" {
		return id
	}
	return "call_" + name
}

func contentText(c *genai.Content) string {
	if c == nil {
		return ""
	}
	var parts []string
	for _, p := range c.Parts {
		if p != nil && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func toToolDefinition(fd *genai.FunctionDeclaration) (ai.ToolDefinition, error) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}

	switch {
	case fd.ParametersJsonSchema != nil:
		raw, err := json.Marshal(fd.ParametersJsonSchema)
		if err != nil {
			return ai.ToolDefinition{}, errors.Wrapf(err, "marshal schema of tool %s", fd.Name)
		}
		var decoded map[string]any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return ai.ToolDefinition{}, errors.Wrapf(err, "decode schema of tool %s", fd.Name)
		}
		params = decoded
	case fd.Parameters != nil:
		params = schemaToMap(fd.Parameters)
	}

	return ai.ToolDefinition{
		Type: "function",
		Function: ai.FunctionDefinition{
			Name:        fd.Name,
			Description: fd.Description,
			Parameters:  params,
		},
	}, nil
}

// schemaToMap renders a genai schema as JSON schema. genai spells types in
// upper case, JSON schema wants them lower case.
func schemaToMap(s *genai.Schema) map[string]any {
	out := map[string]any{}
	if s == nil {
		return out
	}
	if s.Type != "" {
		out["type"] = strings.ToLower(string(s.Type))
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Items != nil {
		out["items"] = schemaToMap(s.Items)
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = schemaToMap(p)
		}
		out["properties"] = props
	} else if s.Type == genai.TypeObject {
		out["properties"] = map[string]any{}
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

func (m *ModelAdapter) toLLMResponse(resp *ai.ChatResponse) *model.LLMResponse {
	out := &model.LLMResponse{TurnComplete: true}

	choice, ok := resp.First()
	if !ok {
		out.FinishReason = genai.FinishReasonOther
		out.ErrorMessage = "no choices in response"
		return out
	}

	content := &genai.Content{Role: string(genai.RoleModel)}

	if choice.Message.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		args, err := tc.Function.Args()
		if err != nil {
			m.log.Warnw("unparseable tool call arguments", "tool", tc.Function.Name, "error", err)
		}
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   tc.ID,
				Name: tc.Function.Name,
				Args: args,
			},
		})
	}

	out.Content = content

	switch choice.FinishReason {
	case ai.FinishReasonLength:
		out.FinishReason = genai.FinishReasonMaxTokens
	case ai.FinishReasonContentFilter:
		out.FinishReason = genai.FinishReasonSafety
	default:
		out.FinishReason = genai.FinishReasonStop
	}

	out.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
		PromptTokenCount:     int32(resp.Usage.PromptTokens),
		CandidatesTokenCount: int32(resp.Usage.CompletionTokens),
		TotalTokenCount:      int32(resp.Usage.TotalTokens),
	}

	return out
}

var _ model.LLM = (*ModelAdapter)(nil)
