// Package ratelimit counts actions per caller in fixed windows stored in
// Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is the subset of the Redis client the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// Limiter allows at most limit actions per key in each window. The window
// starts with the first action and is not sliding.
type Limiter struct {
	client Counter
	prefix string
	limit  int64
	window time.Duration
}

func New(client Counter, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Allow records one action for key. When the limit is exceeded it returns
// false and how long until the window resets.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	redisKey := l.prefix + ":" + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis error incrementing count: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("redis error setting TTL: %w", err)
		}
	}

	if count <= l.limit {
		return true, 0, nil
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil {
		return false, 0, fmt.Errorf("redis error reading TTL: %w", err)
	}
	if ttl < 0 {
		// The key lost its expiry (e.g. the Expire after the first Incr failed);
		// start a new window instead of blocking forever.
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, 0, fmt.Errorf("redis error setting TTL: %w", err)
		}
		ttl = l.window
	}
	return false, ttl, nil
}

// NewClient connects to Redis at addr and verifies the connection.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
