package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
)

// Event is an append-only audit record. Payload values must already be
// masked; raw phone numbers and national IDs never belong here.
type Event struct {
	ID            uuid.UUID              `json:"id"`
	Type          EventType              `json:"type"`
	TransactionID string                 `json:"transaction_id"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// NewEvent validates and builds an event stamped with at
func NewEvent(eventType EventType, transactionID string, payload map[string]interface{}, at time.Time) (*Event, error) {
	if !eventType.IsValid() {
		return nil, errors.NewValidationError("INVALID_EVENT_TYPE",
			"unknown audit event type "+string(eventType))
	}
	if transactionID == "" {
		return nil, errors.NewValidationError("MISSING_TRANSACTION_ID",
			"transaction ID is required")
	}

	copied := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		copied[k] = v
	}

	return &Event{
		ID:            uuid.New(),
		Type:          eventType,
		TransactionID: transactionID,
		Payload:       copied,
		Timestamp:     at.UTC(),
	}, nil
}

// Category returns the event type's category
func (e *Event) Category() string {
	return e.Type.Category()
}
