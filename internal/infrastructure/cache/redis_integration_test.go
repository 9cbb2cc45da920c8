//go:build integration

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
	"github.com/davidleathers/fraud-stepup-backend/internal/testutil/containers"
)

func TestSessionStore_RealRedis(t *testing.T) {
	ctx := context.Background()

	rc, err := containers.NewRedisContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Terminate(ctx) })

	opts, err := redis.ParseURL(rc.ConnectionString)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	store := NewSessionStore(client, nil, zaptest.NewLogger(t))

	now := time.Now()
	sess, err := verification.NewSession("tx-real", "cust-1", "45", now, 30*time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, sess))

	const callers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []verification.Outcome
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var res verification.AttemptResult
			_, err := store.AtomicUpdate(ctx, "tx-real", attemptFn("12", time.Now(), &res))
			if err != nil {
				return
			}
			mu.Lock()
			outcomes = append(outcomes, res.Outcome)
			mu.Unlock()
		}()
	}
	wg.Wait()

	// only three wrong attempts fit before the session blocks
	require.Len(t, outcomes, verification.DefaultMaxAttempts)
	assert.Contains(t, outcomes, verification.OutcomeBlocked)

	got, err := store.Get(ctx, "tx-real")
	require.NoError(t, err)
	assert.Equal(t, verification.StatusBlocked, got.Status)
	assert.Equal(t, verification.DefaultMaxAttempts, got.Attempts)
}

func TestRateLimiter_RealRedis(t *testing.T) {
	ctx := context.Background()

	rc, err := containers.NewRedisContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Terminate(ctx) })

	opts, err := redis.ParseURL(rc.ConnectionString)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRateLimiter(client, nil, zaptest.NewLogger(t))
	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "challenge-call:tx-1", 2, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "challenge-call:tx-1", 2, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}
