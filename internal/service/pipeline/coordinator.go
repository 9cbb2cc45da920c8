package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/audit"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/customer"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/transaction"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/fraud"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/telephony"
)

// Defaults for Config zero values
const (
	DefaultThreshold     = 75
	DefaultHistoryLimit  = 50
	DefaultBlockDuration = 24 * time.Hour
)

// Config tunes the threshold decision
type Config struct {
	// Threshold is the score at or above which a challenge is required.
	// Nil selects DefaultThreshold; zero challenges every transaction.
	Threshold     *int
	HistoryLimit  int
	BlockDuration time.Duration
}

// Dependencies groups the coordinator's collaborators. Metrics and Clock
// may be nil.
type Dependencies struct {
	Transactions TransactionRepository
	History      HistoryLookup
	Customers    CustomerDirectory
	Scorer       RiskScorer
	Sessions     SessionService
	Dialer       ChallengeDialer
	Audit        AuditRecorder
	Metrics      DecisionRecorder
	Clock        clock.Clock
}

// SubmitResult is the outcome of a submission
type SubmitResult struct {
	TransactionID uuid.UUID          `json:"transaction_id"`
	Status        transaction.Status `json:"status"`
	RiskScore     int                `json:"risk_score"`
	Strategy      fraud.Strategy     `json:"strategy"`
	// ExpiresAt is set when a verification session was opened
	ExpiresAt *time.Time `json:"verification_expires_at,omitempty"`
}

// Coordinator drives a transaction from submission to a decision and, for
// risky transactions, into a step-up challenge
type Coordinator struct {
	deps     Dependencies
	features fraud.FeatureBuilder
	clock    clock.Clock
	logger   *zap.Logger
	tracer   trace.Tracer

	threshold     int
	historyLimit  int
	blockDuration time.Duration
}

// NewCoordinator creates a pipeline coordinator
func NewCoordinator(deps Dependencies, features fraud.FeatureBuilder, logger *zap.Logger, cfg Config) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := DefaultThreshold
	if cfg.Threshold != nil {
		threshold = *cfg.Threshold
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.BlockDuration <= 0 {
		cfg.BlockDuration = DefaultBlockDuration
	}

	return &Coordinator{
		deps:          deps,
		features:      features,
		clock:         clock.OrReal(deps.Clock),
		logger:        logger,
		tracer:        otel.Tracer("pipeline.coordinator"),
		threshold:     threshold,
		historyLimit:  cfg.HistoryLimit,
		blockDuration: cfg.BlockDuration,
	}
}

// Threshold returns the configured challenge threshold
func (c *Coordinator) Threshold() int {
	return c.threshold
}

// Submit scores tx and either approves it or starts a step-up challenge
func (c *Coordinator) Submit(ctx context.Context, tx *transaction.Transaction) (*SubmitResult, error) {
	if tx == nil {
		return nil, errors.NewValidationError("INVALID_TRANSACTION", "transaction is required")
	}
	if tx.Status != transaction.StatusPending {
		return nil, errors.NewConflictError("TRANSACTION_ALREADY_DECIDED",
			"transaction has already been processed").
			WithDetails(map[string]interface{}{"transaction_id": tx.ID.String()})
	}

	txID := tx.ID.String()
	ctx, span := c.tracer.Start(ctx, "Coordinator.Submit",
		trace.WithAttributes(
			attribute.String("transaction.id", txID),
			attribute.String("tenant.id", tx.TenantID),
			attribute.String("merchant.category", tx.MerchantCategory),
		),
	)
	defer span.End()

	log := c.logger.With(
		zap.String("transaction_id", txID),
		zap.String("tenant_id", tx.TenantID),
		zap.String("customer_id", tx.CustomerID))

	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordTransactionAmount(ctx, tx.Amount.ToFloat64(), tx.Amount.Currency())
	}
	c.deps.Audit.Record(ctx, audit.EventTransactionSubmitted, txID, map[string]interface{}{
		"customer_id":       tx.CustomerID,
		"amount":            tx.Amount.Amount().String(),
		"currency":          tx.Amount.Currency(),
		"merchant_category": tx.MerchantCategory,
		"merchant_name":     tx.MerchantName,
	})

	history := c.history(ctx, tx, log)
	features := c.features.Build(tx, history)
	result := c.deps.Scorer.Score(ctx, tx, features)

	span.SetAttributes(
		attribute.Int("risk.score", result.Score),
		attribute.String("risk.strategy", result.Strategy.String()),
	)
	c.deps.Audit.Record(ctx, audit.EventTransactionScored, txID, map[string]interface{}{
		"score":     result.Score,
		"strategy":  result.Strategy.String(),
		"threshold": c.threshold,
	})

	now := c.clock.Now()
	if result.Score < c.threshold {
		return c.approve(ctx, tx, result, now, log)
	}
	return c.stepUp(ctx, tx, result, now, span, log)
}

func (c *Coordinator) history(ctx context.Context, tx *transaction.Transaction, log *zap.Logger) []transaction.HistoryEntry {
	if c.deps.History == nil {
		return nil
	}
	history, err := c.deps.History.RecentHistory(ctx, tx.TenantID, tx.CustomerID, tx.SubmittedAt, c.historyLimit)
	if err != nil {
		log.Warn("history lookup failed, scoring with empty history", zap.Error(err))
		return nil
	}
	return history
}

func (c *Coordinator) approve(ctx context.Context, tx *transaction.Transaction, result fraud.ScoreResult, now time.Time, log *zap.Logger) (*SubmitResult, error) {
	if err := tx.Approve(result.Score, now); err != nil {
		return nil, err
	}
	if err := c.deps.Transactions.Create(ctx, tx); err != nil {
		return nil, errors.NewInternalError("failed to store transaction").WithCause(err)
	}

	c.deps.Audit.Record(ctx, audit.EventTransactionApproved, tx.ID.String(), map[string]interface{}{
		"score": result.Score,
	})
	c.recordDecision(ctx, tx.Status)
	log.Info("transaction approved", zap.Int("score", result.Score))

	return &SubmitResult{
		TransactionID: tx.ID,
		Status:        tx.Status,
		RiskScore:     result.Score,
		Strategy:      result.Strategy,
	}, nil
}

func (c *Coordinator) stepUp(ctx context.Context, tx *transaction.Transaction, result fraud.ScoreResult, now time.Time, span trace.Span, log *zap.Logger) (*SubmitResult, error) {
	if err := tx.RequireVerification(result.Score, now); err != nil {
		return nil, err
	}
	txID := tx.ID.String()

	// Without a profile no challenge can run; nothing is stored.
	profile, err := c.deps.Customers.ChallengeProfile(ctx, tx.TenantID, tx.CustomerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "challenge profile unavailable")
		c.deps.Audit.Record(ctx, audit.EventVerificationUnavailable, txID, map[string]interface{}{
			"reason": "challenge_profile_unavailable",
			"score":  result.Score,
		})
		log.Error("challenge profile unavailable, transaction not stored", zap.Error(err))
		return nil, err
	}

	if err := c.deps.Transactions.Create(ctx, tx); err != nil {
		return nil, errors.NewInternalError("failed to store transaction").WithCause(err)
	}
	log.Info("transaction requires verification", zap.Int("score", result.Score))

	res := &SubmitResult{
		TransactionID: tx.ID,
		Status:        tx.Status,
		RiskScore:     result.Score,
		Strategy:      result.Strategy,
	}

	sess, err := c.deps.Sessions.Open(ctx, txID, tx.CustomerID, profile.ExpectedCode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open verification session")
		return c.failClosed(ctx, tx, res, err, log)
	}
	c.recordDecision(ctx, tx.Status)
	expires := sess.ExpiresAt
	res.ExpiresAt = &expires

	if err := c.dial(ctx, tx, profile); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "challenge call failed")
		return res, err
	}
	return res, nil
}

// failClosed blocks a stored transaction whose challenge could not be
// opened. No session exists for it, so it could never be verified.
func (c *Coordinator) failClosed(ctx context.Context, tx *transaction.Transaction, res *SubmitResult, cause error, log *zap.Logger) (*SubmitResult, error) {
	if err := tx.MarkBlocked(c.clock.Now()); err != nil {
		return res, err
	}
	if err := c.deps.Transactions.Update(ctx, tx); err != nil {
		log.Error("failed to block transaction without session", zap.Error(err))
		return res, errors.NewInternalError("failed to update transaction").WithCause(err)
	}
	c.deps.Audit.Record(ctx, audit.EventVerificationUnavailable, tx.ID.String(), map[string]interface{}{
		"reason": "session_unavailable",
		"status": tx.Status.String(),
	})
	c.recordDecision(ctx, tx.Status)
	log.Error("verification session unavailable, transaction blocked", zap.Error(cause))

	res.Status = tx.Status
	return res, cause
}

// RetryChallengeCall re-dials the customer for a transaction whose
// verification session is still open
func (c *Coordinator) RetryChallengeCall(ctx context.Context, id uuid.UUID) error {
	tx, err := c.deps.Transactions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tx.Status != transaction.StatusPendingVerification {
		return errors.NewConflictError("NOT_PENDING_VERIFICATION",
			"transaction is not awaiting verification").
			WithDetails(map[string]interface{}{"transaction_id": id.String(), "status": tx.Status.String()})
	}

	sess, err := c.deps.Sessions.Get(ctx, id.String())
	if err != nil {
		return err
	}
	if sess.Status.IsTerminal() {
		return errors.NewConflictError("SESSION_CLOSED", "verification session already finished").
			WithDetails(map[string]interface{}{"transaction_id": id.String()})
	}

	profile, err := c.deps.Customers.ChallengeProfile(ctx, tx.TenantID, tx.CustomerID)
	if err != nil {
		return err
	}
	return c.dial(ctx, tx, profile)
}

func (c *Coordinator) dial(ctx context.Context, tx *transaction.Transaction, profile *customer.ChallengeProfile) error {
	_, err := c.deps.Dialer.StartChallenge(ctx, telephony.ChallengeCallRequest{
		TransactionID: tx.ID.String(),
		Phone:         profile.Phone,
		Language:      profile.Language,
	})
	return err
}

// ResolveVerification records a terminal challenge outcome on the stored
// transaction and blocks the customer when the challenge was failed.
// Repeating a resolution that already happened is a no-op.
func (c *Coordinator) ResolveVerification(ctx context.Context, transactionID string, status verification.Status) error {
	ctx, span := c.tracer.Start(ctx, "Coordinator.ResolveVerification",
		trace.WithAttributes(
			attribute.String("transaction.id", transactionID),
			attribute.String("verification.status", string(status)),
		),
	)
	defer span.End()

	id, err := uuid.Parse(transactionID)
	if err != nil {
		return errors.NewValidationError("INVALID_TRANSACTION_ID", "transaction ID must be a UUID").WithCause(err)
	}

	tx, err := c.deps.Transactions.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := c.clock.Now()
	switch status {
	case verification.StatusVerified:
		if tx.Status == transaction.StatusVerified {
			return nil
		}
		err = tx.MarkVerified(now)
	case verification.StatusBlocked:
		if tx.Status == transaction.StatusBlocked {
			return nil
		}
		err = tx.MarkBlocked(now)
	case verification.StatusPending:
		return errors.NewValidationError("INVALID_RESOLUTION", "pending is not a terminal verification status")
	default:
		return errors.NewValidationError("INVALID_RESOLUTION", "unknown verification status "+string(status))
	}
	if err != nil {
		return err
	}

	if err := c.deps.Transactions.Update(ctx, tx); err != nil {
		span.RecordError(err)
		return errors.NewInternalError("failed to update transaction").WithCause(err)
	}
	c.recordDecision(ctx, tx.Status)

	log := c.logger.With(zap.String("transaction_id", transactionID), zap.String("status", tx.Status.String()))
	if tx.Status == transaction.StatusBlocked {
		until := now.Add(c.blockDuration)
		if err := c.deps.Customers.Block(ctx, tx.TenantID, tx.CustomerID, until); err != nil {
			span.RecordError(err)
			log.Error("failed to block customer", zap.Error(err))
			return errors.NewInternalError("failed to block customer").WithCause(err)
		}
		log.Warn("customer blocked after failed verification", zap.Time("blocked_until", until))
		return nil
	}

	log.Info("transaction verified")
	return nil
}

// VerificationStatus reports the transaction and its live session, if any
func (c *Coordinator) VerificationStatus(ctx context.Context, id uuid.UUID) (*transaction.Transaction, *verification.Session, error) {
	tx, err := c.deps.Transactions.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	sess, err := c.deps.Sessions.Get(ctx, id.String())
	if err != nil {
		if stderrors.Is(err, verification.ErrSessionNotFound) {
			return tx, nil, nil
		}
		return nil, nil, err
	}
	return tx, sess, nil
}

func (c *Coordinator) recordDecision(ctx context.Context, status transaction.Status) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordDecision(ctx, status.String())
	}
}
