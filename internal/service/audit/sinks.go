package audit

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/audit"
)

// LogRepository writes events to the structured log. It is the sink used
// when no database is configured.
type LogRepository struct {
	logger *zap.Logger
}

// NewLogRepository creates a log-backed sink
func NewLogRepository(logger *zap.Logger) *LogRepository {
	return &LogRepository{logger: logger.Named("audit")}
}

func (r *LogRepository) Store(_ context.Context, event *audit.Event) error {
	r.logger.Info("audit event",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)),
		zap.String("category", event.Category()),
		zap.String("transaction_id", event.TransactionID),
		zap.Time("timestamp", event.Timestamp),
		zap.Any("payload", event.Payload))
	return nil
}

// ListByTransaction is unsupported by the log sink and returns nothing
func (r *LogRepository) ListByTransaction(context.Context, string) ([]*audit.Event, error) {
	return nil, nil
}

// MemoryRepository keeps events in memory
type MemoryRepository struct {
	mu     sync.RWMutex
	events []*audit.Event
}

// NewMemoryRepository creates an empty in-memory sink
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Store(_ context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *MemoryRepository) ListByTransaction(_ context.Context, transactionID string) ([]*audit.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*audit.Event
	for _, e := range r.events {
		if e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Events returns a snapshot of every stored event in insertion order
func (r *MemoryRepository) Events() []*audit.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*audit.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the stored event types in insertion order
func (r *MemoryRepository) Types() []audit.EventType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]audit.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
