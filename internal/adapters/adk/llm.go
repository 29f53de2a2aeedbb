package adk

import (
	"context"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"deckforge/internal/adapters/ai"
	"deckforge/internal/adapters/config"
	"deckforge/pkg/errors"
)

// NewLLM builds the configured model and wraps it with instrumentation.
// The returned handle is stateless and shared by every request.
func NewLLM(ctx context.Context, cfg config.AIConfig, limiters *ai.RateLimiterFactory, costs *ai.CostTracker) (model.LLM, error) {
	rl := ai.RateLimitConfig{
		Enabled:      cfg.RateLimitPerMinute > 0,
		ReqPerMinute: cfg.RateLimitPerMinute,
		Burst:        cfg.RateLimitBurst,
	}

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		limiter := limiters.Create(ai.ProviderNameOpenAI, rl)
		provider, err := ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:     cfg.OpenAIKey,
			BaseURL:    cfg.OpenAIURL,
			Timeout:    cfg.Timeout,
			MaxRetries: 2,
		}, nil)
		if err != nil {
			return nil, err
		}
		// limiting happens in the decorator so both providers share the same path
		return Instrument(NewModelAdapter(provider, cfg.Model, cfg.MaxTokens), limiter, costs), nil

	case "gemini":
		limiter := limiters.Create(ai.ProviderNameGoogle, rl)
		llm, err := gemini.NewModel(ctx, cfg.Model, &genai.ClientConfig{
			APIKey:  cfg.GeminiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create gemini model")
		}
		return Instrument(llm, limiter, costs), nil

	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown AI provider %q", cfg.Provider)
	}
}
