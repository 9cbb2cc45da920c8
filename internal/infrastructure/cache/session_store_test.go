package cache

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
)

var sessionEpoch = time.Date(2024, 3, 14, 2, 0, 0, 0, time.UTC)

func newTestSessionStore(t *testing.T) (*SessionStore, *clock.MockClock) {
	t.Helper()
	client, _ := setupTestRedis(t)
	clk := clock.NewMockClock(sessionEpoch)
	return NewSessionStore(client, clk, zaptest.NewLogger(t)), clk
}

func newSession(t *testing.T, txID string) *verification.Session {
	t.Helper()
	s, err := verification.NewSession(txID, "cust-1", "45", sessionEpoch, 30*time.Minute)
	require.NoError(t, err)
	return s
}

func attemptFn(code string, now time.Time, out *verification.AttemptResult) verification.UpdateFunc {
	return func(s *verification.Session) error {
		r, err := s.Attempt(code, verification.DefaultMaxAttempts, now)
		if err != nil {
			return err
		}
		*out = r
		return nil
	}
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSessionStore(t)

	require.NoError(t, store.Create(ctx, newSession(t, "tx-1")))

	got, err := store.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", got.CustomerID)
	assert.Equal(t, "45", got.ExpectedCode)
	assert.Equal(t, verification.StatusPending, got.Status)
	assert.True(t, got.ExpiresAt.Equal(sessionEpoch.Add(30*time.Minute)))

	ttl, err := store.client.TTL(ctx, "verification:session:tx-1").Result()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, ttl)

	err = store.Create(ctx, newSession(t, "tx-1"))
	assert.ErrorIs(t, err, verification.ErrSessionAlreadyOpen)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, verification.ErrSessionNotFound)
}

func TestSessionStore_AtomicUpdateKeepsTTL(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestSessionStore(t)
	require.NoError(t, store.Create(ctx, newSession(t, "tx-1")))

	var res verification.AttemptResult
	updated, err := store.AtomicUpdate(ctx, "tx-1", attemptFn("12", clk.Now(), &res))
	require.NoError(t, err)
	assert.Equal(t, verification.OutcomeIncorrect, res.Outcome)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, 1, updated.Attempts)

	ttl, err := store.client.TTL(ctx, "verification:session:tx-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	got, err := store.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempts)
}

func TestSessionStore_UpdateErrorDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSessionStore(t)
	require.NoError(t, store.Create(ctx, newSession(t, "tx-1")))

	boom := stderrors.New("boom")
	_, err := store.AtomicUpdate(ctx, "tx-1", func(s *verification.Session) error {
		s.Attempts = 99
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Attempts)
}

func TestSessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestSessionStore(t)
	require.NoError(t, store.Create(ctx, newSession(t, "tx-1")))

	clk.Advance(30 * time.Minute)

	_, err := store.Get(ctx, "tx-1")
	assert.ErrorIs(t, err, verification.ErrSessionNotFound)

	var res verification.AttemptResult
	_, err = store.AtomicUpdate(ctx, "tx-1", attemptFn("45", clk.Now(), &res))
	assert.ErrorIs(t, err, verification.ErrSessionNotFound)

	fresh, err := verification.NewSession("tx-1", "cust-1", "45", clk.Now(), 30*time.Minute)
	require.NoError(t, err)
	assert.NoError(t, store.Create(ctx, fresh))
}

func TestSessionStore_VerifiedThenNotFound(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestSessionStore(t)
	require.NoError(t, store.Create(ctx, newSession(t, "tx-1")))

	var res verification.AttemptResult
	_, err := store.AtomicUpdate(ctx, "tx-1", attemptFn("45", clk.Now(), &res))
	require.NoError(t, err)
	assert.Equal(t, verification.OutcomeVerified, res.Outcome)

	_, err = store.AtomicUpdate(ctx, "tx-1", attemptFn("45", clk.Now(), &res))
	assert.ErrorIs(t, err, verification.ErrSessionNotFound)
}

func TestSessionStore_ConcurrentAttempts(t *testing.T) {
	ctx := context.Background()
	store, clk := newTestSessionStore(t)
	require.NoError(t, store.Create(ctx, newSession(t, "tx-1")))

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[verification.Outcome]int{}
		notFound int
		other    []error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var res verification.AttemptResult
			_, err := store.AtomicUpdate(ctx, "tx-1", attemptFn("00", clk.Now(), &res))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				outcomes[res.Outcome]++
			case stderrors.Is(err, verification.ErrSessionNotFound):
				notFound++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 2, outcomes[verification.OutcomeIncorrect])
	assert.Equal(t, 1, outcomes[verification.OutcomeBlocked])
	assert.Equal(t, workers-3, notFound)

	final, err := store.client.Get(ctx, "verification:session:tx-1").Result()
	require.NoError(t, err)
	assert.Contains(t, final, `"attempts":3`)
	assert.Contains(t, final, `"status":"blocked"`)
}
