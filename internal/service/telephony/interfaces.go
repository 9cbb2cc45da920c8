package telephony

import (
	"context"
	"time"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/audit"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/values"
)

// Provider places outbound calls (Twilio, Vonage, etc.)
type Provider interface {
	// InitiateCall dials to and returns the provider's call id. voiceURL
	// serves the first TwiML document; statusURL receives progress events.
	InitiateCall(ctx context.Context, from, to, voiceURL, statusURL string) (string, error)
	// GetProviderName returns the provider name
	GetProviderName() string
}

// ProviderError is implemented by provider failures that carry the
// provider's own status and error code
type ProviderError interface {
	error
	ProviderStatus() int
	ProviderCode() int
}

// AuditRecorder records telephony events
type AuditRecorder interface {
	Record(ctx context.Context, eventType audit.EventType, transactionID string, payload map[string]interface{}) *audit.Event
}

// MetricsCollector receives call metrics
type MetricsCollector interface {
	RecordCall(ctx context.Context, success bool)
}

// ChallengeCallRequest asks for a verification call for one transaction
type ChallengeCallRequest struct {
	TransactionID string
	Phone         values.PhoneNumber
	Language      string
}

// CallResponse describes a placed call
type CallResponse struct {
	CallSID   string
	Provider  string
	StartedAt time.Time
}

// StatusUpdate is a provider progress callback
type StatusUpdate struct {
	TransactionID string
	CallSID       string
	Status        string
	Duration      *int
}

// CallStatus is the normalized provider call state
type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusInitiated  CallStatus = "initiated"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusAnswered   CallStatus = "answered"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusBusy       CallStatus = "busy"
	CallStatusNoAnswer   CallStatus = "no-answer"
	CallStatusFailed     CallStatus = "failed"
	CallStatusCanceled   CallStatus = "canceled"
	CallStatusUnknown    CallStatus = "unknown"
)
