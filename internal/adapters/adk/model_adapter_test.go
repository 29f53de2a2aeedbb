package adk

import (
	"context"
	"encoding/json"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"deckforge/internal/adapters/ai"
	"deckforge/pkg/errors"
)

type fakeChatProvider struct {
	resp *ai.ChatResponse
	err  error
	got  ai.ChatRequest
}

func (f *fakeChatProvider) Name() ai.ProviderName { return ai.ProviderNameOpenAI }

func (f *fakeChatProvider) GetModel(context.Context, string) (ai.ModelInfo, error) {
	return ai.ModelInfo{}, nil
}

func (f *fakeChatProvider) Chat(_ context.Context, req ai.ChatRequest) (*ai.ChatResponse, error) {
	f.got = req
	return f.resp, f.err
}

func collect(t *testing.T, seq iter.Seq2[*model.LLMResponse, error]) (*model.LLMResponse, error) {
	t.Helper()
	var (
		last    *model.LLMResponse
		lastErr error
	)
	for resp, err := range seq {
		last, lastErr = resp, err
	}
	return last, lastErr
}

func TestModelAdapter_ToolRoundTrip(t *testing.T) {
	provider := &fakeChatProvider{resp: &ai.ChatResponse{
		Choices: []ai.Choice{{
			Message: ai.Message{
				Role: ai.RoleAssistant,
				ToolCalls: []ai.ToolCall{{
					ID:       "call_42",
					Type:     "function",
					Function: ai.FunctionCall{Name: "web_search", Arguments: `{"query":"scooters vietnam"}`},
				}},
			},
			FinishReason: ai.FinishReasonToolCalls,
		}},
		Usage: ai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	adapter := NewModelAdapter(provider, "gpt-4o-mini", 0)

	req := &model.LLMRequest{
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("you research things", "system"),
			Tools: []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        "web_search",
				Description: "search the web",
				Parameters: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: map[string]*genai.Schema{"query": {Type: genai.TypeString}},
					Required:   []string{"query"},
				},
			}}}},
		},
		Contents: []*genai.Content{
			genai.NewContentFromText("research scooters", genai.RoleUser),
			{Role: string(genai.RoleModel), Parts: []*genai.Part{{
				FunctionCall: &genai.FunctionCall{ID: "call_1", Name: "web_search", Args: map[string]any{"query": "a"}},
			}}},
			{Role: string(genai.RoleUser), Parts: []*genai.Part{
				{FunctionResponse: &genai.FunctionResponse{ID: "call_1", Name: "web_search", Response: map[string]any{"ok": true}}},
			}},
		},
	}

	resp, err := collect(t, adapter.GenerateContent(context.Background(), req, false))
	require.NoError(t, err)

	msgs := provider.got.Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, ai.RoleSystem, msgs[0].Role)
	assert.Equal(t, "you research things", msgs[0].Content)
	assert.Equal(t, ai.RoleUser, msgs[1].Role)
	assert.Equal(t, ai.RoleAssistant, msgs[2].Role)
	require.Len(t, msgs[2].ToolCalls, 1)
	assert.Equal(t, "call_1", msgs[2].ToolCalls[0].ID)
	assert.Equal(t, ai.RoleTool, msgs[3].Role)
	assert.Equal(t, "call_1", msgs[3].ToolCallID)
	assert.JSONEq(t, `{"ok":true}`, msgs[3].Content)

	require.Len(t, provider.got.Tools, 1)
	params := provider.got.Tools[0].Function.Parameters
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, map[string]any{"type": "string"}, params["properties"].(map[string]any)["query"])

	require.NotNil(t, resp.Content)
	require.Len(t, resp.Content.Parts, 1)
	fc := resp.Content.Parts[0].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "call_42", fc.ID)
	assert.Equal(t, "scooters vietnam", fc.Args["query"])
	assert.Equal(t, int32(10), resp.UsageMetadata.PromptTokenCount)
}

func TestModelAdapter_JSONSchemaParameters(t *testing.T) {
	provider := &fakeChatProvider{resp: &ai.ChatResponse{Choices: []ai.Choice{{Message: ai.Message{Content: "ok"}}}}}
	adapter := NewModelAdapter(provider, "gpt-4o-mini", 0)

	var schema any
	require.NoError(t, json.Unmarshal([]byte(`{"type":"object","properties":{"url":{"type":"string"}}}`), &schema))

	req := &model.LLMRequest{
		Config: &genai.GenerateContentConfig{Tools: []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{{
			Name:                 "fetch_page",
			ParametersJsonSchema: schema,
		}}}}},
		Contents: []*genai.Content{genai.NewContentFromText("go", genai.RoleUser)},
	}

	resp, err := collect(t, adapter.GenerateContent(context.Background(), req, false))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content.Parts[0].Text)
	assert.Contains(t, provider.got.Tools[0].Function.Parameters, "properties")
}

func TestModelAdapter_ProviderError(t *testing.T) {
	provider := &fakeChatProvider{err: errors.ErrRateLimitExceeded}
	adapter := NewModelAdapter(provider, "gpt-4o-mini", 0)

	_, err := collect(t, adapter.GenerateContent(context.Background(), &model.LLMRequest{}, false))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRateLimitExceeded)
}

func TestModelAdapter_NoChoices(t *testing.T) {
	provider := &fakeChatProvider{resp: &ai.ChatResponse{}}
	adapter := NewModelAdapter(provider, "gpt-4o-mini", 0)

	resp, err := collect(t, adapter.GenerateContent(context.Background(), &model.LLMRequest{}, false))
	require.NoError(t, err)
	assert.Equal(t, genai.FinishReasonOther, resp.FinishReason)
	assert.NotEmpty(t, resp.ErrorMessage)
}
