package ai

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"deckforge/pkg/errors"
)

// ProviderName identifies a model vendor.
type ProviderName string

const (
	ProviderNameOpenAI ProviderName = "openai"
	ProviderNameGoogle ProviderName = "google"
)

// Provider defines the contract each AI provider implementation must satisfy.
type Provider interface {
	Name() ProviderName

	// GetModel returns metadata for a specific model.
	GetModel(ctx context.Context, model string) (ModelInfo, error)
}

// ModelInfo describes the capabilities and pricing of a model.
type ModelInfo struct {
	Provider        ProviderName
	Name            string          // Provider-specific model identifier
	Family          string          // Family/category name (e.g., "gpt-4o")
	MaxTokens       int             // Maximum context length
	MaxOutputTokens int             // Maximum completion length
	InputCostPer1K  decimal.Decimal // USD per 1K input tokens
	OutputCostPer1K decimal.Decimal // USD per 1K output tokens
	SupportsTools   bool
}

var catalog = []ModelInfo{
	{
		Provider:        ProviderNameOpenAI,
		Name:            "gpt-4o-mini",
		Family:          "gpt-4o",
		MaxTokens:       128000,
		MaxOutputTokens: 16384,
		InputCostPer1K:  decimal.RequireFromString("0.00015"),
		OutputCostPer1K: decimal.RequireFromString("0.0006"),
		SupportsTools:   true,
	},
	{
		Provider:        ProviderNameOpenAI,
		Name:            "gpt-4o",
		Family:          "gpt-4o",
		MaxTokens:       128000,
		MaxOutputTokens: 16384,
		InputCostPer1K:  decimal.RequireFromString("0.0025"),
		OutputCostPer1K: decimal.RequireFromString("0.01"),
		SupportsTools:   true,
	},
	{
		Provider:        ProviderNameOpenAI,
		Name:            "gpt-4.1-mini",
		Family:          "gpt-4.1",
		MaxTokens:       1047576,
		MaxOutputTokens: 32768,
		InputCostPer1K:  decimal.RequireFromString("0.0004"),
		OutputCostPer1K: decimal.RequireFromString("0.0016"),
		SupportsTools:   true,
	},
	{
		Provider:        ProviderNameGoogle,
		Name:            "gemini-2.5-flash",
		Family:          "gemini-2.5",
		MaxTokens:       1048576,
		MaxOutputTokens: 65536,
		InputCostPer1K:  decimal.RequireFromString("0.0003"),
		OutputCostPer1K: decimal.RequireFromString("0.0025"),
		SupportsTools:   true,
	},
	{
		Provider:        ProviderNameGoogle,
		Name:            "gemini-2.5-pro",
		Family:          "gemini-2.5",
		MaxTokens:       1048576,
		MaxOutputTokens: 65536,
		InputCostPer1K:  decimal.RequireFromString("0.00125"),
		OutputCostPer1K: decimal.RequireFromString("0.01"),
		SupportsTools:   true,
	},
}

// LookupModel finds pricing metadata for a model name. Unknown models are priced at zero.
func LookupModel(name string) (ModelInfo, bool) {
	for _, m := range catalog {
		if strings.EqualFold(m.Name, name) {
			return m, true
		}
	}
	return ModelInfo{Name: name, InputCostPer1K: decimal.Zero, OutputCostPer1K: decimal.Zero}, false
}

func getModel(provider ProviderName, name string) (ModelInfo, error) {
	m, ok := LookupModel(name)
	if !ok || m.Provider != provider {
		return ModelInfo{}, errors.Wrapf(errors.ErrNotFound, "%s model %s not found", provider, name)
	}
	return m, nil
}
