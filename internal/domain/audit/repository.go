package audit

import "context"

// EventRepository persists audit events. Implementations only ever append.
type EventRepository interface {
	// Store appends a single event
	Store(ctx context.Context, event *Event) error

	// ListByTransaction returns a transaction's events oldest first
	ListByTransaction(ctx context.Context, transactionID string) ([]*Event, error)
}
