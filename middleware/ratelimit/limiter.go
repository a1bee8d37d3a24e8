// Package ratelimit provides a Redis-backed fixed-window rate limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter configuration.
type Config struct {
	// RedisAddr is the Redis server address (e.g. "localhost:6379").
	RedisAddr string

	// Limit is the maximum number of requests allowed per window.
	Limit int

	// Window is the fixed window length.
	Window time.Duration

	// KeyPrefix is the prefix for Redis keys (default "ratelimit:").
	KeyPrefix string
}

// Limiter implements fixed-window rate limiting using Redis. Ticket
// issuance only needs a coarse per-principal cap, so a plain INCR+EXPIRE
// window is enough; no sorted-set bookkeeping.
type Limiter struct {
	client *redis.Client
	config Config
}

// New creates a rate limiter with a Redis backend.
func New(config Config) *Limiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ratelimit:"
	}
	if config.Limit <= 0 {
		config.Limit = 30
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	client := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
	return &Limiter{client: client, config: config}
}

// Allow reports whether one more request is allowed for key in the current
// window.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	windowStamp := time.Now().Unix() / int64(l.config.Window.Seconds())
	redisKey := fmt.Sprintf("%s%s:%d", l.config.KeyPrefix, key, windowStamp)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis incr failed: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("redis expire failed: %w", err)
		}
	}
	return count <= int64(l.config.Limit), nil
}

// Reset clears the current window for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	windowStamp := time.Now().Unix() / int64(l.config.Window.Seconds())
	redisKey := fmt.Sprintf("%s%s:%d", l.config.KeyPrefix, key, windowStamp)
	return l.client.Del(ctx, redisKey).Err()
}

// Close releases the Redis connection.
func (l *Limiter) Close() error {
	return l.client.Close()
}
