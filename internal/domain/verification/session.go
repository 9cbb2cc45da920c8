package verification

import (
	"fmt"
	"strings"
	"time"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
)

// Defaults used when configuration leaves them unset
const (
	DefaultMaxAttempts = 3
	DefaultSessionTTL  = 30 * time.Minute
	CodeLength         = 2
)

// Sentinel protocol errors. Match with errors.Is; wrap with fmt.Errorf and %w
// rather than mutating them.
var (
	ErrSessionAlreadyOpen = errors.NewConflictError("SESSION_ALREADY_OPEN",
		"verification session already open")
	ErrSessionNotFound = &errors.AppError{
		Type:       errors.ErrorTypeNotFound,
		Code:       "SESSION_NOT_FOUND",
		Message:    "verification session not found",
		StatusCode: 404,
	}
)

// Status is the state of a verification session
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusBlocked  Status = "blocked"
)

// IsTerminal reports whether the status accepts no more attempts
func (s Status) IsTerminal() bool {
	switch s {
	case StatusVerified, StatusBlocked:
		return true
	case StatusPending:
		return false
	default:
		return false
	}
}

// Outcome is the result of one challenge attempt
type Outcome string

const (
	OutcomeVerified  Outcome = "verified"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeIncorrect Outcome = "incorrect"
)

// AttemptResult reports what a single attempt did to the session
type AttemptResult struct {
	Outcome   Outcome `json:"outcome"`
	Attempts  int     `json:"attempts"`
	Remaining int     `json:"remaining"`
}

// Session is the per-transaction step-up challenge state
type Session struct {
	TransactionID string    `json:"transaction_id"`
	CustomerID    string    `json:"customer_id"`
	ExpectedCode  string    `json:"expected_code"`
	Attempts      int       `json:"attempts"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// NewSession returns a pending session expiring ttl after now
func NewSession(transactionID, customerID, expectedCode string, now time.Time, ttl time.Duration) (*Session, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, errors.NewValidationError("MISSING_TRANSACTION_ID", "transaction ID is required")
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.NewValidationError("MISSING_CUSTOMER_ID", "customer ID is required")
	}
	if err := ValidateCode(expectedCode); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, errors.NewValidationError("INVALID_TTL", "session TTL must be positive")
	}

	return &Session{
		TransactionID: transactionID,
		CustomerID:    customerID,
		ExpectedCode:  expectedCode,
		Status:        StatusPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(ttl),
	}, nil
}

// ValidateCode checks that code is exactly two ASCII digits
func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return errors.NewValidationError("INVALID_CODE",
			fmt.Sprintf("code must be %d digits", CodeLength))
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return errors.NewValidationError("INVALID_CODE", "code must contain only digits")
		}
	}
	return nil
}

// IsExpired reports whether the session is past its expiry at now
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsLive reports whether the session still occupies its transaction id
func (s *Session) IsLive(now time.Time) bool {
	return !s.IsExpired(now)
}

// TTL returns the time left before expiry, zero once expired
func (s *Session) TTL(now time.Time) time.Duration {
	if s.IsExpired(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// Attempt applies one parsed code to the session. Expired or terminal
// sessions report ErrSessionNotFound and are left untouched.
func (s *Session) Attempt(code string, maxAttempts int, now time.Time) (AttemptResult, error) {
	if s.IsExpired(now) || s.Status.IsTerminal() {
		return AttemptResult{}, fmt.Errorf("%w: transaction %s", ErrSessionNotFound, s.TransactionID)
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	s.Attempts++

	switch {
	case code == s.ExpectedCode:
		s.Status = StatusVerified
		return AttemptResult{Outcome: OutcomeVerified, Attempts: s.Attempts}, nil
	case s.Attempts >= maxAttempts:
		s.Status = StatusBlocked
		return AttemptResult{Outcome: OutcomeBlocked, Attempts: s.Attempts}, nil
	default:
		return AttemptResult{
			Outcome:   OutcomeIncorrect,
			Attempts:  s.Attempts,
			Remaining: maxAttempts - s.Attempts,
		}, nil
	}
}
