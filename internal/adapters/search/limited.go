package search

import (
	"context"

	"golang.org/x/time/rate"

	"deckforge/pkg/errors"
)

// RateLimitedProvider keeps the query rate to a provider under a budget
// shared by every request of the process.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimitedProvider allows qps queries per second with a burst of one.
// A non-positive qps disables limiting.
func NewRateLimitedProvider(inner Provider, qps float64) *RateLimitedProvider {
	limit := rate.Inf
	if qps > 0 {
		limit = rate.Limit(qps)
	}
	return &RateLimitedProvider{inner: inner, limiter: rate.NewLimiter(limit, 1)}
}

func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

func (p *RateLimitedProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrapf(err, "waiting for %s rate limit", p.inner.Name())
	}
	return p.inner.Search(ctx, query, maxResults)
}

var _ Provider = (*RateLimitedProvider)(nil)
