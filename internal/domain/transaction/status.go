package transaction

import "fmt"

// Status is the lifecycle state of a transaction
type Status int

const (
	StatusPending Status = iota
	StatusApproved
	StatusPendingVerification
	StatusVerified
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusPendingVerification:
		return "pending_verification"
	case StatusVerified:
		return "verified"
	case StatusBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of String
func ParseStatus(s string) (Status, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "approved":
		return StatusApproved, nil
	case "pending_verification":
		return StatusPendingVerification, nil
	case "verified":
		return StatusVerified, nil
	case "blocked":
		return StatusBlocked, nil
	default:
		return StatusPending, fmt.Errorf("unknown transaction status %q", s)
	}
}

// CanTransitionTo reports whether the lifecycle allows moving to next
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusPendingVerification
	case StatusPendingVerification:
		return next == StatusVerified || next == StatusBlocked
	case StatusApproved, StatusVerified, StatusBlocked:
		return false
	default:
		return false
	}
}

// IsFinal reports whether no further transition is possible
func (s Status) IsFinal() bool {
	return s == StatusApproved || s == StatusVerified || s == StatusBlocked
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
