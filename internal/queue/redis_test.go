package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisQueueWithClient(client, "")
}

func TestRedisQueueFIFO(t *testing.T) {
	_, q := setupTestRedis(t)
	ctx := context.Background()

	for _, p := range []string{"P1", "P2", "P3"} {
		require.NoError(t, q.Enqueue(ctx, p))
	}

	head, ok, err := q.Peek(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "P1", head)

	items, err := q.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1", "P2", "P3"}, items)

	for _, want := range []string{"P1", "P2", "P3"} {
		got, ok, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = q.Peek(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisQueueClearAndLen(t *testing.T) {
	_, q := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "a"))
	require.NoError(t, q.Enqueue(ctx, "b"))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cleared, err := q.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)
	n, err = q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisQueueWrongTypeIsCorrupt(t *testing.T) {
	mr, q := setupTestRedis(t)
	require.NoError(t, mr.Set(DefaultRedisKey, "not a list"))

	_, _, err := q.Dequeue(context.Background())
	assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
}

func TestRedisQueueUnavailable(t *testing.T) {
	mr, q := setupTestRedis(t)
	mr.Close()

	err := q.Enqueue(context.Background(), "lost?")
	assert.Error(t, err)
}
