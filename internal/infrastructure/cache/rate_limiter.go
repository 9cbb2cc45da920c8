package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
)

// RateLimiter is a sliding-window limiter shared across instances through
// Redis sorted sets. It caps outbound challenge calls per transaction.
type RateLimiter struct {
	client *redis.Client
	clock  clock.Clock
	logger *zap.Logger
}

// NewRateLimiter creates a Redis-backed limiter. A nil clock uses the real clock.
func NewRateLimiter(client *redis.Client, c clock.Clock, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{client: client, clock: clock.OrReal(c), logger: logger}
}

// Allow records a hit for key and reports whether it fits within limit hits
// per window
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := r.clock.Now()
	windowStart := now.Add(-window)
	rateLimitKey := RateLimitPrefix + key
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + uuid.NewString()

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rateLimitKey, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, rateLimitKey)
	pipe.ZAdd(ctx, rateLimitKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, rateLimitKey, window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("rate limiter pipeline failed",
			zap.String("key", key),
			zap.Int("limit", limit),
			zap.Error(err))
		return false, fmt.Errorf("rate limiter pipeline failed: %w", err)
	}

	if countCmd.Val() >= int64(limit) {
		if err := r.client.ZRem(ctx, rateLimitKey, member).Err(); err != nil {
			r.logger.Warn("rate limiter rollback failed", zap.String("key", key), zap.Error(err))
		}
		r.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("current_count", countCmd.Val()),
			zap.Int("limit", limit))
		return false, nil
	}
	return true, nil
}

// Remaining returns how many hits are left for key in the current window
func (r *RateLimiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	windowStart := r.clock.Now().Add(-window)
	rateLimitKey := RateLimitPrefix + key

	count, err := r.client.ZCount(ctx, rateLimitKey,
		"("+strconv.FormatInt(windowStart.UnixNano(), 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("rate limiter count failed: %w", err)
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
