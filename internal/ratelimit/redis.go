package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter with a fixed-window counter in Redis, for
// deployments running more than one gateway instance behind a shared
// quota. It deliberately fails open: if Redis is unreachable or returns an
// error, the request is allowed and a warning is logged, rather than
// treating a dependency outage as a reason to reject legitimate traffic.
// The effective ceiling under a partial Redis failure is therefore the
// caller's normal traffic rate, not the configured limit — an intentional
// availability-over-strict-quota tradeoff.
type RedisLimiter struct {
	client    *redis.Client
	window    time.Duration
	threshold int64
	keyPrefix string
}

// RedisConfig controls the fixed window and per-window request ceiling.
type RedisConfig struct {
	Addr      string
	Window    time.Duration
	Threshold int64
	KeyPrefix string
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.Window <= 0 {
		c.Window = time.Second
	}
	if c.Threshold <= 0 {
		c.Threshold = 20
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "censusql:ratelimit:"
	}

	return c
}

// NewRedisLimiter constructs a RedisLimiter against a single Redis
// instance.
func NewRedisLimiter(cfg RedisConfig) *RedisLimiter {
	cfg = cfg.withDefaults()

	return &RedisLimiter{
		client:    redis.NewClient(&redis.Options{Addr: cfg.Addr}),
		window:    cfg.Window,
		threshold: cfg.Threshold,
		keyPrefix: cfg.KeyPrefix,
	}
}

// Allow increments the caller's fixed-window counter and compares it to
// the threshold. identity "" is bucketed separately from authenticated
// callers, same as InMemoryLimiter.
func (l *RedisLimiter) Allow(identity string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	key := l.keyPrefix + identity

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("ratelimit: redis unavailable, failing open", slog.String("error", err.Error()))

		return true
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			slog.Warn("ratelimit: failed to set window expiry, failing open", slog.String("error", err.Error()))

			return true
		}
	}

	return count <= l.threshold
}

// Close releases the underlying Redis client connection pool.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
