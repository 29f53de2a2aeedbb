package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"deckforge/pkg/errors"
)

// RedisRateLimiter is a token bucket shared by every replica through Redis.
type RedisRateLimiter struct {
	client   redis.Scripter
	provider ProviderName
	rate     float64 // tokens per second
	burst    int
	key      string
	script   *redis.Script
}

// takeTokenScript refills the bucket, tries to take one token and returns
// 0 when a token was taken, otherwise the milliseconds until one is available.
// KEYS[1] bucket key; ARGV rate (tokens/s), burst, now (s, float).
const takeTokenScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
tokens = math.min(burst, tokens + math.max(0, now - ts) * rate)
local wait = 0
if tokens >= 1 then
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) / rate * 1000)
end
redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('EXPIRE', KEYS[1], 3600)
return wait
`

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client redis.Scripter, provider ProviderName, reqPerMinute float64, burst int) *RedisRateLimiter {
	if burst <= 0 {
		burst = int(reqPerMinute / 10)
		if burst < 1 {
			burst = 1
		}
	}

	return &RedisRateLimiter{
		client:   client,
		provider: provider,
		rate:     reqPerMinute / 60.0,
		burst:    burst,
		key:      fmt.Sprintf("deckforge:rate_limit:ai:%s", provider),
		script:   redis.NewScript(takeTokenScript),
	}
}

// Wait blocks until a token is available or context is cancelled.
func (l *RedisRateLimiter) Wait(ctx context.Context) error {
	for {
		wait, err := l.take(ctx)
		if err != nil {
			return errors.Wrapf(err, "redis rate limiter for provider %s", l.provider)
		}
		if wait == 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &RateLimitError{
				Provider: l.provider,
				Limit:    l.Limit(),
				Err:      errors.Wrap(ctx.Err(), "rate limiter wait cancelled"),
			}
		case <-timer.C:
		}
	}
}

// Allow takes a token if one is available. Redis errors deny the request.
func (l *RedisRateLimiter) Allow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	wait, err := l.take(ctx)
	return err == nil && wait == 0
}

// Limit returns the current rate limit in requests per minute.
func (l *RedisRateLimiter) Limit() float64 {
	return l.rate * 60.0
}

func (l *RedisRateLimiter) take(ctx context.Context) (time.Duration, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	ms, err := l.script.Run(ctx, l.client, []string{l.key}, l.rate, l.burst, now).Int64()
	if err != nil {
		return 0, errors.Wrap(err, "token bucket script")
	}

	return time.Duration(ms) * time.Millisecond, nil
}

var _ RateLimiter = (*RedisRateLimiter)(nil)
