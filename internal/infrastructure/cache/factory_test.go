package cache

import (
	"errors"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/fulfillment/internal/domain/shared"
	"github.com/erp/fulfillment/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfigFor(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisConfig{Host: mr.Host(), Port: port}
}

func TestIdempotencyStoreFactory_CreateStore(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(config.RedisConfig{}).CreateStore(BackendMemory)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("empty backend means memory", func(t *testing.T) {
		store, err := NewIdempotencyStoreFactory(config.RedisConfig{}).CreateStore("")
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("redis backend", func(t *testing.T) {
		mr := miniredis.RunT(t)
		store, err := NewIdempotencyStoreFactory(redisConfigFor(t, mr)).CreateStore(BackendRedis)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &RedisIdempotencyStore{}, store)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewIdempotencyStoreFactory(config.RedisConfig{}).CreateStore("memcached")
		assert.Error(t, err)
	})
}

func TestIdempotencyStoreFactory_Fallback(t *testing.T) {
	unreachable := func(config.RedisConfig) (shared.IdempotencyStore, error) {
		return nil, errors.New("connection refused")
	}

	t.Run("falls back to memory", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{})
		f.newRedisStore = unreachable

		store, err := f.CreateStore(BackendRedis)
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &InMemoryIdempotencyStore{}, store)
	})

	t.Run("fails without fallback", func(t *testing.T) {
		f := NewIdempotencyStoreFactory(config.RedisConfig{}, WithInMemoryFallback(false))
		f.newRedisStore = unreachable

		_, err := f.CreateStore(BackendRedis)
		assert.ErrorContains(t, err, "Redis required")
	})
}
