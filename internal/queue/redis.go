package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"qbwc-webhook-adapter/internal/metrics"
)

// DefaultRedisKey is the list that holds pending requests.
const DefaultRedisKey = "qbwc:queue"

// RedisQueue stores the queue in a Redis list. Each operation is a single
// atomic command, so concurrent writers and the popper never lose items.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue connects to redisURL and checks the connection.
func NewRedisQueue(redisURL, key string) (*RedisQueue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisQueueWithClient(client, key), nil
}

// NewRedisQueueWithClient wraps an existing client.
func NewRedisQueueWithClient(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, payload string) error {
	n, err := q.client.RPush(ctx, q.key, payload).Result()
	if err != nil {
		return q.wrap("enqueue", err)
	}
	metrics.QueueDepth.Set(float64(n))
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (string, bool, error) {
	payload, err := q.client.LPop(ctx, q.key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.QueueDepth.Set(0)
		return "", false, nil
	}
	if err != nil {
		return "", false, q.wrap("dequeue", err)
	}
	if n, err := q.client.LLen(ctx, q.key).Result(); err == nil {
		metrics.QueueDepth.Set(float64(n))
	}
	return payload, true, nil
}

func (q *RedisQueue) Peek(ctx context.Context) (string, bool, error) {
	payload, err := q.client.LIndex(ctx, q.key, 0).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, q.wrap("peek", err)
	}
	return payload, true, nil
}

func (q *RedisQueue) Clear(ctx context.Context) (int, error) {
	var n *redis.IntCmd
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		n = pipe.LLen(ctx, q.key)
		pipe.Del(ctx, q.key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis clear: %w", err)
	}
	metrics.QueueDepth.Set(0)
	return int(n.Val()), nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, q.wrap("len", err)
	}
	return int(n), nil
}

func (q *RedisQueue) List(ctx context.Context) ([]string, error) {
	items, err := q.client.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, q.wrap("list", err)
	}
	return items, nil
}

// Close releases the underlying client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// wrap marks WRONGTYPE replies as corruption: the key holds something
// other than a list.
func (q *RedisQueue) wrap(op string, err error) error {
	var rerr redis.Error
	if errors.As(err, &rerr) && strings.HasPrefix(rerr.Error(), "WRONGTYPE") {
		return fmt.Errorf("%w: redis key %q: %v", ErrCorrupt, q.key, err)
	}
	return fmt.Errorf("redis %s: %w", op, err)
}
