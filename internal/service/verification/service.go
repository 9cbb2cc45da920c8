package verification

import (
	"context"
	stderrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/audit"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
)

// AuditRecorder records one event per session transition
type AuditRecorder interface {
	Record(ctx context.Context, eventType audit.EventType, transactionID string, payload map[string]interface{}) *audit.Event
}

// OutcomeRecorder receives verification metrics
type OutcomeRecorder interface {
	RecordSessionOpened(ctx context.Context)
	RecordVerificationOutcome(ctx context.Context, outcome string)
}

// Config holds session limits
type Config struct {
	MaxAttempts int
	SessionTTL  time.Duration
}

// Service runs the verification session state machine on top of a Store
type Service struct {
	store    verification.Store
	recorder AuditRecorder
	metrics  OutcomeRecorder
	clock    clock.Clock
	logger   *zap.Logger

	maxAttempts int
	ttl         time.Duration
}

// NewService creates a verification service. metrics and c may be nil.
func NewService(store verification.Store, recorder AuditRecorder, metrics OutcomeRecorder, c clock.Clock, logger *zap.Logger, cfg Config) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = verification.DefaultMaxAttempts
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = verification.DefaultSessionTTL
	}

	return &Service{
		store:       store,
		recorder:    recorder,
		metrics:     metrics,
		clock:       clock.OrReal(c),
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		ttl:         cfg.SessionTTL,
	}
}

// MaxAttempts returns the configured attempt limit
func (s *Service) MaxAttempts() int {
	return s.maxAttempts
}

// Open starts a pending session for the transaction
func (s *Service) Open(ctx context.Context, transactionID, customerID, expectedCode string) (*verification.Session, error) {
	sess, err := verification.NewSession(transactionID, customerID, expectedCode, s.clock.Now(), s.ttl)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, sess); err != nil {
		if stderrors.Is(err, verification.ErrSessionAlreadyOpen) {
			return nil, err
		}
		return nil, errors.NewInternalError("failed to store verification session").
			WithCause(err).
			WithDetails(map[string]interface{}{"transaction_id": transactionID})
	}

	if s.metrics != nil {
		s.metrics.RecordSessionOpened(ctx)
	}
	s.recorder.Record(ctx, audit.EventVerificationInitiated, transactionID, map[string]interface{}{
		"customer_id":  customerID,
		"max_attempts": s.maxAttempts,
		"expires_at":   sess.ExpiresAt,
	})

	s.logger.Info("verification session opened",
		zap.String("transaction_id", transactionID),
		zap.Time("expires_at", sess.ExpiresAt))

	return sess, nil
}

// Attempt applies a parsed two-digit code to the session
func (s *Service) Attempt(ctx context.Context, transactionID, code string) (verification.AttemptResult, error) {
	if err := verification.ValidateCode(code); err != nil {
		return verification.AttemptResult{}, err
	}

	var result verification.AttemptResult
	sess, err := s.store.AtomicUpdate(ctx, transactionID, func(sess *verification.Session) error {
		r, err := sess.Attempt(code, s.maxAttempts, s.clock.Now())
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		if stderrors.Is(err, verification.ErrSessionNotFound) {
			return verification.AttemptResult{}, err
		}
		return verification.AttemptResult{}, errors.NewInternalError("failed to update verification session").
			WithCause(err).
			WithDetails(map[string]interface{}{"transaction_id": transactionID})
	}

	s.recordOutcome(ctx, sess, result)
	return result, nil
}

// Get returns the live session for status queries
func (s *Service) Get(ctx context.Context, transactionID string) (*verification.Session, error) {
	sess, err := s.store.Get(ctx, transactionID)
	if err != nil {
		if stderrors.Is(err, verification.ErrSessionNotFound) {
			return nil, err
		}
		return nil, errors.NewInternalError("failed to load verification session").
			WithCause(err).
			WithDetails(map[string]interface{}{"transaction_id": transactionID})
	}
	return sess, nil
}

func (s *Service) recordOutcome(ctx context.Context, sess *verification.Session, result verification.AttemptResult) {
	if s.metrics != nil {
		s.metrics.RecordVerificationOutcome(ctx, string(result.Outcome))
	}

	log := s.logger.With(
		zap.String("transaction_id", sess.TransactionID),
		zap.Int("attempts", result.Attempts))

	switch result.Outcome {
	case verification.OutcomeVerified:
		s.recorder.Record(ctx, audit.EventVerificationSuccess, sess.TransactionID, map[string]interface{}{
			"customer_id": sess.CustomerID,
			"attempts":    result.Attempts,
		})
		log.Info("verification succeeded")
	case verification.OutcomeBlocked:
		s.recorder.Record(ctx, audit.EventVerificationFailedBlocked, sess.TransactionID, map[string]interface{}{
			"customer_id": sess.CustomerID,
			"attempts":    result.Attempts,
		})
		log.Warn("verification blocked after max attempts")
	case verification.OutcomeIncorrect:
		s.recorder.Record(ctx, audit.EventVerificationFailedAttempt, sess.TransactionID, map[string]interface{}{
			"customer_id": sess.CustomerID,
			"attempts":    result.Attempts,
			"remaining":   result.Remaining,
		})
		log.Info("verification attempt incorrect", zap.Int("remaining", result.Remaining))
	}
}
