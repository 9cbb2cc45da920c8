package cache

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScoreCache keeps model scores per transaction under fraud:score:<id>
type ScoreCache struct {
	client redis.Cmdable
}

// NewScoreCache wraps a Redis client
func NewScoreCache(client redis.Cmdable) *ScoreCache {
	return &ScoreCache{client: client}
}

// GetScore returns the cached score and whether one was present
func (c *ScoreCache) GetScore(ctx context.Context, transactionID string) (int, bool, error) {
	raw, err := c.client.Get(ctx, ScorePrefix+transactionID).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("score cache get failed: %w", err)
	}

	score, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("score cache holds non-integer %q: %w", raw, err)
	}
	return score, true, nil
}

// SetScore stores score for ttl
func (c *ScoreCache) SetScore(ctx context.Context, transactionID string, score int, ttl time.Duration) error {
	if err := c.client.Set(ctx, ScorePrefix+transactionID, score, ttl).Err(); err != nil {
		return fmt.Errorf("score cache set failed: %w", err)
	}
	return nil
}
