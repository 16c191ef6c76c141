package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIdempotencyStoreWithClient(client, "")
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisIdempotencyStore_MarkProcessed(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	isNew, err := store.MarkProcessed(ctx, "req-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.True(t, mr.Exists(DefaultIdempotencyKeyPrefix+"req-1"))
	assert.Equal(t, time.Hour, mr.TTL(DefaultIdempotencyKeyPrefix+"req-1"))

	isNew, err = store.MarkProcessed(ctx, "req-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, isNew, "repeated key should return false")
}

func TestRedisIdempotencyStore_Expiry(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "req-2", time.Minute)
	require.NoError(t, err)

	processed, err := store.IsProcessed(ctx, "req-2")
	require.NoError(t, err)
	assert.True(t, processed)

	mr.FastForward(2 * time.Minute)

	processed, err = store.IsProcessed(ctx, "req-2")
	require.NoError(t, err)
	assert.False(t, processed)

	isNew, err := store.MarkProcessed(ctx, "req-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestRedisIdempotencyStore_Release(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "req-3", time.Hour)
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, "req-3"))
	assert.False(t, mr.Exists(DefaultIdempotencyKeyPrefix+"req-3"))

	isNew, err := store.MarkProcessed(ctx, "req-3", time.Hour)
	require.NoError(t, err)
	assert.True(t, isNew)
}

func TestRedisIdempotencyStore_CustomPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIdempotencyStoreWithClient(client, "test:")
	defer store.Close()

	_, err := store.MarkProcessed(context.Background(), "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:k"))
}

func TestRedisIdempotencyStore_ServerDown(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	_, err := store.MarkProcessed(context.Background(), "req-4", time.Hour)
	assert.Error(t, err)

	_, err = store.IsProcessed(context.Background(), "req-4")
	assert.Error(t, err)
}
