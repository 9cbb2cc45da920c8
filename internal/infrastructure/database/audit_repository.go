package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/audit"
)

// AuditRepository appends audit events to audit_events
type AuditRepository struct {
	db Querier
}

// NewAuditRepository creates an audit sink over db
func NewAuditRepository(db Querier) *AuditRepository {
	return &AuditRepository{db: db}
}

// Store inserts event. Events are immutable; a duplicate id is an error.
func (r *AuditRepository) Store(ctx context.Context, event *audit.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal audit payload: %w", err)
	}

	const query = `
		INSERT INTO audit_events (id, event_type, transaction_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := r.db.Exec(ctx, query,
		event.ID, string(event.Type), event.TransactionID, payload, event.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to store audit event: %w", err)
	}
	return nil
}

// ListByTransaction returns a transaction's events in the order they happened
func (r *AuditRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*audit.Event, error) {
	const query = `
		SELECT id, event_type, transaction_id, payload, occurred_at
		FROM audit_events
		WHERE transaction_id = $1
		ORDER BY occurred_at, seq`

	rows, err := r.db.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*audit.Event
	for rows.Next() {
		var (
			e         audit.Event
			id        uuid.UUID
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&id, &eventType, &e.TransactionID, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.ID = id
		e.Type = audit.EventType(eventType)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode audit payload: %w", err)
			}
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, &e)
	}
	return events, rows.Err()
}
