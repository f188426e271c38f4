package storage

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, 3)
}

func TestRedisStore_GetPut(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "key", []byte("value")))

	value, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)
}

func TestRedisStore_Update(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	t.Run("creates the key on first update", func(t *testing.T) {
		err := store.Update(ctx, "fresh", func(current []byte) ([]byte, error) {
			assert.Nil(t, current)
			return []byte("created"), nil
		})
		require.NoError(t, err)

		value, err := store.Get(ctx, "fresh")
		require.NoError(t, err)
		assert.Equal(t, []byte("created"), value)
	})

	t.Run("transforms the current value", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "key", []byte("a")))

		err := store.Update(ctx, "key", func(current []byte) ([]byte, error) {
			return append(current, 'b'), nil
		})
		require.NoError(t, err)

		value, err := store.Get(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, []byte("ab"), value)
	})

	t.Run("no change leaves the value untouched", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "stable", []byte("original")))

		err := store.Update(ctx, "stable", func(current []byte) ([]byte, error) {
			return nil, ErrNoChange
		})
		require.NoError(t, err)

		value, err := store.Get(ctx, "stable")
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), value)
	})
}

func TestRedisStore_AppendList(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "log", []byte("first")))
	require.NoError(t, store.Append(ctx, "log", []byte("second")))

	entries, err := store.List(ctx, "log")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte("first"), entries[0])
	assert.Equal(t, []byte("second"), entries[1])

	empty, err := store.List(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
