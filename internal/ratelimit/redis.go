package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter sharing one counter set across all
// instances. Each identifier maps to one key per window bucket; INCR keeps
// increments linearizable per key without round trips for read-modify-write.
//
// A Redis failure is logged and the request is admitted: the shared counter
// is an availability aid, and an outage must not lock operators out of the
// admin plane. Authorization checks downstream never fall open.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisLimiter constructs a Redis backed limiter.
func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, logger *slog.Logger) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Check counts the request against the identifier's current window bucket.
func (l *RedisLimiter) Check(ctx context.Context, identifier string) (Result, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	resetAt := windowStart.Add(l.window)
	key := fmt.Sprintf("adminrate:%s:%d", identifier, windowStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		if l.logger != nil {
			l.logger.Warn("rate limit backend unavailable, admitting request",
				slog.String("identifier", identifier), slog.Any("error", err))
		}
		return Result{Allowed: true, Limit: l.limit, Remaining: l.limit - 1, ResetAt: resetAt}, nil
	}

	count := int(incr.Val())
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
