package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/values"
)

// Transaction is a submitted financial event moving through the fraud pipeline
type Transaction struct {
	ID               uuid.UUID    `json:"id"`
	TenantID         string       `json:"tenant_id"`
	CustomerID       string       `json:"customer_id"`
	Amount           values.Money `json:"amount"`
	MerchantCategory string       `json:"merchant_category"`
	MerchantName     string       `json:"merchant_name"`
	Location         *Location    `json:"location,omitempty"`
	Device           *DeviceInfo  `json:"device,omitempty"`
	SubmittedAt      time.Time    `json:"submitted_at"`

	// RiskScore stays nil until the scorer has run
	RiskScore *int   `json:"risk_score,omitempty"`
	Status    Status `json:"status"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Location is the geolocation reported with a transaction
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	City      string  `json:"city,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// DeviceInfo is the device fingerprint reported with a transaction
type DeviceInfo struct {
	DeviceID  string `json:"device_id"`
	IPAddress string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Params carries the caller-supplied fields of a new transaction
type Params struct {
	ID               uuid.UUID
	TenantID         string
	CustomerID       string
	Amount           values.Money
	MerchantCategory string
	MerchantName     string
	Location         *Location
	Device           *DeviceInfo
	SubmittedAt      time.Time
}

// New validates params and returns a pending transaction. A zero ID or
// SubmittedAt is filled in from uuid.New and now.
func New(p Params, now time.Time) (*Transaction, error) {
	if strings.TrimSpace(p.TenantID) == "" {
		return nil, errors.NewValidationError("MISSING_TENANT_ID", "tenant ID is required")
	}
	if strings.TrimSpace(p.CustomerID) == "" {
		return nil, errors.NewValidationError("MISSING_CUSTOMER_ID", "customer ID is required")
	}
	if p.Amount.Currency() == "" {
		return nil, errors.NewValidationError("INVALID_AMOUNT", "amount currency is required")
	}
	if !p.Amount.IsPositive() {
		return nil, errors.NewValidationError("INVALID_AMOUNT", "amount must be positive")
	}
	category := NormalizeCategory(p.MerchantCategory)
	if category == "" {
		return nil, errors.NewValidationError("MISSING_MERCHANT_CATEGORY", "merchant category is required")
	}
	if strings.TrimSpace(p.MerchantName) == "" {
		return nil, errors.NewValidationError("MISSING_MERCHANT_NAME", "merchant name is required")
	}
	if p.Location == nil {
		return nil, errors.NewValidationError("MISSING_LOCATION", "location is required")
	}
	if err := p.Location.Validate(); err != nil {
		return nil, errors.NewValidationError("INVALID_LOCATION", err.Error())
	}
	if p.Device == nil {
		return nil, errors.NewValidationError("MISSING_DEVICE_INFO", "device info is required")
	}

	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	submitted := p.SubmittedAt
	if submitted.IsZero() {
		submitted = now
	}

	return &Transaction{
		ID:               id,
		TenantID:         strings.TrimSpace(p.TenantID),
		CustomerID:       strings.TrimSpace(p.CustomerID),
		Amount:           p.Amount,
		MerchantCategory: category,
		MerchantName:     strings.TrimSpace(p.MerchantName),
		Location:         p.Location,
		Device:           p.Device,
		SubmittedAt:      submitted,
		Status:           StatusPending,
		UpdatedAt:        now,
	}, nil
}

// NormalizeCategory lower-cases and trims a merchant category
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// Validate checks the coordinate ranges
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range", l.Longitude)
	}
	return nil
}

// Score returns the risk score and whether it has been set
func (t *Transaction) Score() (int, bool) {
	if t.RiskScore == nil {
		return 0, false
	}
	return *t.RiskScore, true
}

// Approve records the score and moves a pending transaction to approved
func (t *Transaction) Approve(score int, at time.Time) error {
	return t.decide(score, StatusApproved, at)
}

// RequireVerification records the score and moves a pending transaction to
// pending_verification
func (t *Transaction) RequireVerification(score int, at time.Time) error {
	return t.decide(score, StatusPendingVerification, at)
}

// MarkVerified completes a step-up challenge successfully
func (t *Transaction) MarkVerified(at time.Time) error {
	return t.transition(StatusVerified, at)
}

// MarkBlocked completes a step-up challenge with exhausted attempts
func (t *Transaction) MarkBlocked(at time.Time) error {
	return t.transition(StatusBlocked, at)
}

func (t *Transaction) decide(score int, to Status, at time.Time) error {
	if score < 0 || score > 100 {
		return errors.NewValidationError("INVALID_SCORE",
			fmt.Sprintf("risk score %d outside 0..100", score))
	}
	if err := t.transition(to, at); err != nil {
		return err
	}
	t.RiskScore = &score
	return nil
}

func (t *Transaction) transition(to Status, at time.Time) error {
	if !t.Status.CanTransitionTo(to) {
		return errors.NewConflictError("INVALID_STATUS_TRANSITION",
			fmt.Sprintf("transaction cannot move from %s to %s", t.Status, to)).
			WithDetails(map[string]interface{}{"transaction_id": t.ID.String()})
	}
	t.Status = to
	t.UpdatedAt = at
	return nil
}
