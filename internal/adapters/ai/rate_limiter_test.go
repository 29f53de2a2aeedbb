package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckforge/pkg/errors"
)

func TestTokenBucketLimiter_Burst(t *testing.T) {
	// 60 req/min = 1 req/sec, burst 2
	limiter := NewTokenBucketLimiter(ProviderNameOpenAI, 60, 2)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow(), "bucket should be empty after the burst")
	assert.InDelta(t, 60, limiter.Limit(), 0.001)
}

func TestTokenBucketLimiter_WaitRefills(t *testing.T) {
	limiter := NewTokenBucketLimiter(ProviderNameOpenAI, 600, 1) // 10 req/sec
	ctx := context.Background()

	require.NoError(t, limiter.Wait(ctx))

	start := time.Now()
	require.NoError(t, limiter.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestTokenBucketLimiter_ContextCancellation(t *testing.T) {
	limiter := NewTokenBucketLimiter(ProviderNameOpenAI, 6, 1) // one token every 10s
	require.True(t, limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)
}

func TestNoOpLimiter(t *testing.T) {
	limiter := NewNoOpLimiter()
	for i := 0; i < 100; i++ {
		require.True(t, limiter.Allow())
	}
	assert.NoError(t, limiter.Wait(context.Background()))
	assert.Equal(t, float64(-1), limiter.Limit())
}

func TestRateLimiterFactory(t *testing.T) {
	f := NewRateLimiterFactory(nil)

	assert.IsType(t, &NoOpLimiter{}, f.Create(ProviderNameOpenAI, RateLimitConfig{Enabled: false, ReqPerMinute: 100}))
	assert.IsType(t, &NoOpLimiter{}, f.Create(ProviderNameOpenAI, RateLimitConfig{Enabled: true}))
	assert.IsType(t, &TokenBucketLimiter{}, f.Create(ProviderNameOpenAI, RateLimitConfig{Enabled: true, ReqPerMinute: 100}))
}

func TestRateLimitErrorMatchesSentinel(t *testing.T) {
	err := &RateLimitError{Provider: ProviderNameOpenAI, Limit: 10, Err: context.Canceled}
	assert.True(t, errors.Is(err, errors.ErrRateLimitExceeded))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Contains(t, err.Error(), "openai")
}
