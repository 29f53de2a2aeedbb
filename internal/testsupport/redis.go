package testsupport

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"deckforge/internal/adapters/config"
	redisadapter "deckforge/internal/adapters/redis"
)

// KeyPattern matches every key the service writes: search cache entries and
// rate limiter buckets.
const KeyPattern = "deckforge:*"

// NewRedisClient connects through the service's own Redis adapter and
// removes the service's keys before and after the test. Other keys in the
// test database are left alone.
func NewRedisClient(t *testing.T, cfg config.RedisConfig) *redis.Client {
	t.Helper()

	client, err := redisadapter.NewClient(context.Background(), cfg)
	require.NoError(t, err, "connect to redis at %s", cfg.Addr())

	rdb := client.Client()
	clearServiceKeys(t, rdb)

	t.Cleanup(func() {
		clearServiceKeys(t, rdb)
		_ = client.Close()
	})

	return rdb
}

func clearServiceKeys(t *testing.T, rdb *redis.Client) {
	t.Helper()
	ctx := context.Background()

	iter := rdb.Scan(ctx, 0, KeyPattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	require.NoError(t, iter.Err())
	if len(keys) > 0 {
		require.NoError(t, rdb.Del(ctx, keys...).Err())
	}
}
