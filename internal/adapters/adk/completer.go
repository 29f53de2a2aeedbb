package adk

import (
	"context"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"deckforge/pkg/errors"
)

// CompletionRequest is a single tool-free prompt.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float32
}

// Completion is the text answer of a model.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Truncated    bool
}

// Completer runs one-shot prompts. The synthesizer, deck generator and
// editor use it; agent runs drive the model through ADK directly.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// LLMCompleter implements Completer over any model.LLM.
type LLMCompleter struct {
	llm model.LLM
}

// NewCompleter creates a Completer for llm.
func NewCompleter(llm model.LLM) *LLMCompleter {
	return &LLMCompleter{llm: llm}
}

// Complete sends the prompt and concatenates the returned text parts.
func (c *LLMCompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Completion{}, errors.Wrap(errors.ErrInvalidInput, "empty prompt")
	}

	llmReq := &model.LLMRequest{
		Model:    c.llm.Name(),
		Contents: []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		Config:   &genai.GenerateContentConfig{Temperature: req.Temperature},
	}
	if req.System != "" {
		llmReq.Config.SystemInstruction = genai.NewContentFromText(req.System, "system")
	}
	if req.MaxTokens > 0 {
		llmReq.Config.MaxOutputTokens = int32(req.MaxTokens)
	}

	var (
		out  Completion
		text strings.Builder
	)
	for resp, err := range c.llm.GenerateContent(ctx, llmReq, false) {
		if err != nil {
			return Completion{}, err
		}
		if resp == nil {
			continue
		}
		if resp.ErrorMessage != "" {
			return Completion{}, errors.Wrapf(errors.ErrProviderFailure, "model error: %s", resp.ErrorMessage)
		}
		if resp.Partial {
			continue
		}
		if resp.Content != nil {
			for _, p := range resp.Content.Parts {
				if p != nil && p.Text != "" {
					text.WriteString(p.Text)
				}
			}
		}
		if resp.UsageMetadata != nil {
			out.InputTokens += int(resp.UsageMetadata.PromptTokenCount)
			out.OutputTokens += int(resp.UsageMetadata.CandidatesTokenCount)
		}
		if resp.FinishReason == genai.FinishReasonMaxTokens {
			out.Truncated = true
		}
	}

	out.Text = text.String()
	if strings.TrimSpace(out.Text) == "" {
		return out, errors.ErrEmptyCompletion
	}
	return out, nil
}

var _ Completer = (*LLMCompleter)(nil)
