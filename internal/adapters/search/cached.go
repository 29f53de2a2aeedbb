package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"deckforge/internal/metrics"
	"deckforge/pkg/logger"
)

// CachedProvider answers repeated queries from a cache and collapses
// concurrent identical queries into one upstream call.
type CachedProvider struct {
	inner Provider
	cache Cache
	group singleflight.Group
	log   *logger.Logger
}

// NewCachedProvider wraps inner with cache.
func NewCachedProvider(inner Provider, cache Cache) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: cache,
		log:   logger.Get().With("component", "search_cache", "backend", cache.Backend()),
	}
}

func (p *CachedProvider) Name() string { return p.inner.Name() }

// Search returns cached results when present. Failed searches are not cached.
func (p *CachedProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	key := fmt.Sprintf("%s|%d|%s", p.inner.Name(), maxResults, normalizeQuery(query))

	if results, ok := p.cache.Get(ctx, key); ok {
		metrics.RecordCacheLookup(p.cache.Backend(), true)
		return results, nil
	}
	metrics.RecordCacheLookup(p.cache.Backend(), false)

	v, err, _ := p.group.Do(key, func() (any, error) {
		results, err := p.inner.Search(ctx, query, maxResults)
		if err != nil {
			return nil, err
		}
		if err := p.cache.Set(ctx, key, results); err != nil {
			p.log.WithContext(ctx).Warnw("failed to cache search results", "error", err)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Result), nil
}

var _ Provider = (*CachedProvider)(nil)
