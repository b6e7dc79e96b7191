package queue

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

var _ Queue = (*RedisQueue)(nil)

// RedisQueue stores messages in a Redis list: RPUSH on the producer side,
// LPOP on the consumer side. Both are atomic, so any number of processes may share it.
type RedisQueue struct {
	client *goredis.Client
	key    string
}

func NewRedisQueue(client *goredis.Client, key string) (*RedisQueue, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	trimmed, err := validateName(key)
	if err != nil {
		return nil, err
	}
	return &RedisQueue{client: client, key: trimmed}, nil
}

func (q *RedisQueue) Push(ctx context.Context, msg string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := q.client.RPush(ctx, q.key, msg).Err(); err != nil {
		return fmt.Errorf("failed to push to redis queue %q: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (string, bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	msg, err := q.client.LPop(ctx, q.key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to pop from redis queue %q: %w", q.key, err)
	}
	return msg, true, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read redis queue %q length: %w", q.key, err)
	}
	return n, nil
}

// Close leaves the shared client open; its owner closes it.
func (q *RedisQueue) Close() error { return nil }
