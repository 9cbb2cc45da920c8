package audit

// EventType names what happened in the pipeline
type EventType string

// Transaction events
const (
	EventTransactionSubmitted EventType = "transaction_submitted"
	EventTransactionScored    EventType = "transaction_scored"
	EventTransactionApproved  EventType = "transaction_approved"
)

// Verification session events
const (
	EventVerificationInitiated     EventType = "verification_initiated"
	EventVerificationFailedAttempt EventType = "verification_failed_attempt"
	EventVerificationSuccess       EventType = "verification_success"
	EventVerificationFailedBlocked EventType = "verification_failed_blocked"
	// EventVerificationUnavailable means a challenge could not be set up
	EventVerificationUnavailable EventType = "verification_unavailable"
)

// Telephony events
const (
	EventCallInitiated    EventType = "call_initiated"
	EventCallFailed       EventType = "call_failed"
	EventCallStatusUpdate EventType = "call_status_update"
)

var knownEventTypes = map[EventType]struct{}{
	EventTransactionSubmitted:      {},
	EventTransactionScored:         {},
	EventTransactionApproved:       {},
	EventVerificationInitiated:     {},
	EventVerificationFailedAttempt: {},
	EventVerificationSuccess:       {},
	EventVerificationFailedBlocked: {},
	EventVerificationUnavailable:   {},
	EventCallInitiated:             {},
	EventCallFailed:                {},
	EventCallStatusUpdate:          {},
}

// IsValid reports whether t is a known event type
func (t EventType) IsValid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// Category groups event types for querying
func (t EventType) Category() string {
	switch t {
	case EventTransactionSubmitted, EventTransactionScored, EventTransactionApproved:
		return "transaction"
	case EventVerificationInitiated, EventVerificationFailedAttempt,
		EventVerificationSuccess, EventVerificationFailedBlocked, EventVerificationUnavailable:
		return "verification"
	case EventCallInitiated, EventCallFailed, EventCallStatusUpdate:
		return "telephony"
	default:
		return "unknown"
	}
}
