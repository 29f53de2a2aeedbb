package adk

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckforge/internal/adapters/ai"
	"deckforge/internal/testsupport"
	"deckforge/pkg/errors"
)

func TestInstrumentedLLM_RecordsUsage(t *testing.T) {
	costs := ai.NewCostTracker()
	inner := testsupport.NewScriptedLLM("gpt-4o-mini", testsupport.Sequence(testsupport.Text("hello")))
	llm := Instrument(inner, nil, costs)

	ctx, usage := ai.ContextWithUsage(context.Background())
	out, err := NewCompleter(llm).Complete(ctx, CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.Text)

	summary := usage.Summary()
	assert.Equal(t, 1, summary.Calls)
	assert.Equal(t, 100, summary.InputTokens)
	assert.True(t, summary.CostUSD.IsPositive())

	snap := costs.Snapshot()
	assert.Equal(t, int64(1), snap["gpt-4o-mini"].Calls)
	assert.Equal(t, "gpt-4o-mini", llm.Name())
}

func TestInstrumentedLLM_RateLimited(t *testing.T) {
	inner := testsupport.NewScriptedLLM("gpt-4o-mini", testsupport.Sequence(testsupport.Text("hello")))
	limiter := ai.NewTokenBucketLimiter(ai.ProviderNameOpenAI, 6, 1)
	require.True(t, limiter.Allow())
	llm := Instrument(inner, limiter, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewCompleter(llm).Complete(ctx, CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Zero(t, inner.Calls())
	assert.False(t, errors.Is(err, errors.ErrEmptyCompletion))
}
