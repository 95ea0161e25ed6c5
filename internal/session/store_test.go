package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore bound to it
func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, "till-1"), mr
}

func TestRedisStore_SetGet(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "jwtToken", "abc"))

	stored, err := mr.Get("session:till-1:jwtToken")
	require.NoError(t, err)
	assert.Equal(t, "abc", stored)

	value, err := store.Get(ctx, "jwtToken")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := setupTestRedis(t)

	_, err := store.Get(context.Background(), "jwtToken")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisStore_Delete(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "jwtToken", "abc"))
	require.NoError(t, store.Set(ctx, "username", "nimal"))

	require.NoError(t, store.Delete(ctx, "jwtToken", "username", "userId"))

	assert.False(t, mr.Exists("session:till-1:jwtToken"))
	assert.False(t, mr.Exists("session:till-1:username"))
	assert.NoError(t, store.Delete(ctx))
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	_, err := store.Get(context.Background(), "jwtToken")
	assert.ErrorContains(t, err, "redis get failed")
}
