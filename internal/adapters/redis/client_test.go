package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckforge/internal/adapters/config"
	"deckforge/internal/adapters/redis"
	"deckforge/internal/testsupport"
	"deckforge/pkg/errors"
)

func TestNewClient_Unreachable(t *testing.T) {
	_, err := redis.NewClient(context.Background(), config.RedisConfig{Host: "127.0.0.1", Port: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnavailable)
}

func TestNewClient_Health(t *testing.T) {
	cfg := testsupport.LoadRedisConfigFromEnv(t)

	client, err := redis.NewClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Health(context.Background()))
}

func TestRedisTestClient_StartsWithoutServiceKeys(t *testing.T) {
	cfg := testsupport.LoadRedisConfigFromEnv(t)
	ctx := context.Background()

	rdb := testsupport.NewRedisClient(t, cfg)
	key := "deckforge:search:" + testsupport.UniqueName("query")
	require.NoError(t, rdb.Set(ctx, key, "cached", 0).Err())

	t.Run("fresh client", func(t *testing.T) {
		fresh := testsupport.NewRedisClient(t, cfg)
		n, err := fresh.Exists(ctx, key).Result()
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
