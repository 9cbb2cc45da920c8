package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
)

// DefaultMaxTxRetries bounds optimistic-lock retries per operation
const DefaultMaxTxRetries = 50

// SessionStore keeps verification sessions in Redis as JSON with a key TTL
// matching the session expiry. Updates use WATCH/MULTI so concurrent
// attempts on one session serialize.
type SessionStore struct {
	client     *redis.Client
	clock      clock.Clock
	logger     *zap.Logger
	maxRetries uint64
}

// NewSessionStore creates a store. A nil clock uses the real clock.
func NewSessionStore(client *redis.Client, c clock.Clock, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		client:     client,
		clock:      clock.OrReal(c),
		logger:     logger,
		maxRetries: DefaultMaxTxRetries,
	}
}

func sessionKey(transactionID string) string {
	return SessionPrefix + transactionID
}

// Create stores s unless a live session already exists for its transaction
func (s *SessionStore) Create(ctx context.Context, sess *verification.Session) error {
	ttl := sess.TTL(s.clock.Now())
	if ttl <= 0 {
		return fmt.Errorf("session for transaction %s is already expired", sess.TransactionID)
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session marshal failed: %w", err)
	}

	key := sessionKey(sess.TransactionID)
	return s.withTx(ctx, key, func(tx *redis.Tx) error {
		if _, live, err := s.load(ctx, tx, key); err != nil {
			return err
		} else if live {
			return fmt.Errorf("%w: transaction %s", verification.ErrSessionAlreadyOpen, sess.TransactionID)
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	})
}

// Get returns the live session for transactionID
func (s *SessionStore) Get(ctx context.Context, transactionID string) (*verification.Session, error) {
	sess, live, err := s.load(ctx, s.client, sessionKey(transactionID))
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, fmt.Errorf("%w: transaction %s", verification.ErrSessionNotFound, transactionID)
	}
	return sess, nil
}

// AtomicUpdate applies fn to the live session and writes the result back,
// keeping the key's remaining TTL. An error from fn aborts without writing.
func (s *SessionStore) AtomicUpdate(ctx context.Context, transactionID string, fn verification.UpdateFunc) (*verification.Session, error) {
	key := sessionKey(transactionID)
	var updated *verification.Session

	err := s.withTx(ctx, key, func(tx *redis.Tx) error {
		sess, live, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if !live {
			return fmt.Errorf("%w: transaction %s", verification.ErrSessionNotFound, transactionID)
		}
		if err := fn(sess); err != nil {
			return err
		}

		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("session marshal failed: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, redis.SetArgs{KeepTTL: true})
			return nil
		})
		if err != nil {
			return err
		}
		updated = sess
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// load reads and decodes the session at key. A session past its expiry by
// the store clock counts as absent even if Redis has not evicted it yet.
func (s *SessionStore) load(ctx context.Context, c redis.Cmdable, key string) (*verification.Session, bool, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("session get failed: %w", err)
	}

	var sess verification.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, false, fmt.Errorf("session unmarshal failed: %w", err)
	}
	if sess.IsExpired(s.clock.Now()) {
		return nil, false, nil
	}
	return &sess, true, nil
}

// withTx runs fn under WATCH key, retrying with jittered backoff while
// another client wins the race. Any other error is returned as is.
func (s *SessionStore) withTx(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	policy := &backoff.ExponentialBackOff{
		InitialInterval:     2 * time.Millisecond,
		RandomizationFactor: 0.5,
		Multiplier:          1.5,
		MaxInterval:         50 * time.Millisecond,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	policy.Reset()

	attempts := 0
	op := func() error {
		attempts++
		err := s.client.Watch(ctx, fn, key)
		if stderrors.Is(err, redis.TxFailedErr) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx))
	if stderrors.Is(err, redis.TxFailedErr) {
		s.logger.Warn("session update contention exhausted retries",
			zap.String("key", key),
			zap.Int("attempts", attempts))
		return fmt.Errorf("session update failed after %d attempts: %w", attempts, err)
	}
	return err
}
