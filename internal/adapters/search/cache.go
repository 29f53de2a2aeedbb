package search

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"deckforge/pkg/errors"
)

// Cache stores search results by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]Result, bool)
	Set(ctx context.Context, key string, results []Result) error
	Backend() string
}

// MemoryCache is a size-bounded in-process cache with TTL eviction.
type MemoryCache struct {
	lru *expirable.LRU[string, []Result]
}

// NewMemoryCache creates a cache holding at most size entries for ttl each.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 512
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []Result](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]Result, bool) {
	return c.lru.Get(key)
}

func (c *MemoryCache) Set(_ context.Context, key string, results []Result) error {
	c.lru.Add(key, results)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int { return c.lru.Len() }

func (c *MemoryCache) Backend() string { return "memory" }

// RedisCache shares search results between replicas.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "deckforge:search:", ttl: ttl}
}

// Get treats every Redis error as a miss so an outage only costs latency.
func (c *RedisCache) Get(ctx context.Context, key string) ([]Result, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var results []Result
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (c *RedisCache) Set(ctx context.Context, key string, results []Result) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return errors.Wrap(err, "encode search results")
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		return errors.Wrap(err, "store search results")
	}
	return nil
}

func (c *RedisCache) Backend() string { return "redis" }

var (
	_ Cache = (*MemoryCache)(nil)
	_ Cache = (*RedisCache)(nil)
)
