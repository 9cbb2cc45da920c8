package customer

import (
	"time"
	"unicode"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/values"
)

// AccountStatus is the customer's standing with the tenant
type AccountStatus string

const (
	AccountActive  AccountStatus = "active"
	AccountBlocked AccountStatus = "blocked"
)

// Customer is a tenant's end customer as the pipeline sees it. NationalID
// holds the decrypted value and must never be logged; use MaskedNationalID.
type Customer struct {
	ID           string
	TenantID     string
	Name         string
	Phone        values.PhoneNumber
	Language     string
	NationalID   string
	Status       AccountStatus
	BlockedUntil *time.Time
}

// ChallengeProfile is what a step-up challenge needs to reach and check a
// customer
type ChallengeProfile struct {
	CustomerID   string
	Phone        values.PhoneNumber
	Language     string
	ExpectedCode string
}

// ExpectedCode returns the last two digits of the national ID
func (c *Customer) ExpectedCode() (string, error) {
	digits := make([]rune, 0, len(c.NationalID))
	for _, r := range c.NationalID {
		if unicode.IsDigit(r) && r < unicode.MaxLatin1 {
			digits = append(digits, r)
		}
	}
	if len(digits) < 2 {
		return "", errors.NewValidationError("INVALID_NATIONAL_ID",
			"national ID has fewer than two digits").
			WithDetails(map[string]interface{}{"customer_id": c.ID})
	}
	return string(digits[len(digits)-2:]), nil
}

// MaskedNationalID is safe to log
func (c *Customer) MaskedNationalID() string {
	return values.MaskNationalID(c.NationalID)
}

// ChallengeProfile derives the challenge profile
func (c *Customer) ChallengeProfile() (*ChallengeProfile, error) {
	if c.Phone.IsEmpty() {
		return nil, errors.NewValidationError("MISSING_PHONE", "customer has no phone number on file").
			WithDetails(map[string]interface{}{"customer_id": c.ID})
	}
	code, err := c.ExpectedCode()
	if err != nil {
		return nil, err
	}
	return &ChallengeProfile{
		CustomerID:   c.ID,
		Phone:        c.Phone,
		Language:     c.Language,
		ExpectedCode: code,
	}, nil
}

// IsBlocked reports whether the customer is blocked at now
func (c *Customer) IsBlocked(now time.Time) bool {
	if c.Status != AccountBlocked {
		return false
	}
	return c.BlockedUntil == nil || now.Before(*c.BlockedUntil)
}
