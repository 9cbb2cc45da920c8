package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/audit"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/customer"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/transaction"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/verification"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/fraud"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/telephony"
)

// HistoryLookup returns a customer's recent transactions, newest first
type HistoryLookup interface {
	RecentHistory(ctx context.Context, tenantID, customerID string, before time.Time, limit int) ([]transaction.HistoryEntry, error)
}

// TransactionRepository persists transactions
type TransactionRepository interface {
	Create(ctx context.Context, tx *transaction.Transaction) error
	Update(ctx context.Context, tx *transaction.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
}

// CustomerDirectory resolves and restricts customers
type CustomerDirectory interface {
	ChallengeProfile(ctx context.Context, tenantID, customerID string) (*customer.ChallengeProfile, error)
	Block(ctx context.Context, tenantID, customerID string, until time.Time) error
}

// RiskScorer scores a transaction; it never fails
type RiskScorer interface {
	Score(ctx context.Context, tx *transaction.Transaction, features fraud.FeatureVector) fraud.ScoreResult
}

// SessionService opens and reads verification sessions
type SessionService interface {
	Open(ctx context.Context, transactionID, customerID, expectedCode string) (*verification.Session, error)
	Get(ctx context.Context, transactionID string) (*verification.Session, error)
}

// ChallengeDialer places the verification call
type ChallengeDialer interface {
	StartChallenge(ctx context.Context, req telephony.ChallengeCallRequest) (*telephony.CallResponse, error)
}

// AuditRecorder records pipeline events
type AuditRecorder interface {
	Record(ctx context.Context, eventType audit.EventType, transactionID string, payload map[string]interface{}) *audit.Event
}

// DecisionRecorder receives pipeline metrics
type DecisionRecorder interface {
	RecordTransactionAmount(ctx context.Context, amount float64, currency string)
	RecordDecision(ctx context.Context, status string)
}
