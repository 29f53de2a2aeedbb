package search

import (
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"

	"deckforge/internal/adapters/config"
	"deckforge/pkg/errors"
)

// Stack is the assembled search capability.
type Stack struct {
	Provider Provider
	Fetcher  Fetcher
	// Memory is set when results are cached in process.
	Memory *MemoryCache
}

// NewStack assembles provider, rate limit and cache from config. With a
// Redis client the cache is shared, otherwise it lives in process.
func NewStack(cfg config.SearchConfig, redisClient *redis.Client) (*Stack, error) {
	client := &http.Client{Timeout: cfg.Timeout}

	var base Provider
	switch strings.ToLower(cfg.Provider) {
	case "duckduckgo":
		base = NewDuckDuckGo(client)
	case "tavily":
		base = NewTavily(cfg.TavilyKey, "basic", client)
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown search provider %q", cfg.Provider)
	}

	stack := &Stack{Fetcher: NewPageFetcher(client, cfg.FetchUserAgent, cfg.FetchMaxChars)}

	limited := NewRateLimitedProvider(base, cfg.QueriesPerSec)
	if redisClient != nil {
		stack.Provider = NewCachedProvider(limited, NewRedisCache(redisClient, cfg.CacheTTL))
	} else {
		stack.Memory = NewMemoryCache(cfg.CacheSize, cfg.CacheTTL)
		stack.Provider = NewCachedProvider(limited, stack.Memory)
	}

	return stack, nil
}
