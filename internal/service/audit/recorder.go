package audit

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/audit"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
	"github.com/davidleathers/fraud-stepup-backend/internal/domain/values"
)

// DefaultWriteTimeout bounds a single sink write
const DefaultWriteTimeout = 2 * time.Second

// FailureRecorder counts events the sink rejected
type FailureRecorder interface {
	RecordAuditFailure(ctx context.Context, eventType string)
}

// RecorderConfig configures the audit recorder
type RecorderConfig struct {
	WriteTimeout time.Duration
	Clock        clock.Clock
	Failures     FailureRecorder
}

// Recorder writes one audit event per pipeline transition. Writes happen
// inline; a failing sink is logged and never fails the caller.
type Recorder struct {
	repo         audit.EventRepository
	logger       *zap.Logger
	clock        clock.Clock
	failures     FailureRecorder
	writeTimeout time.Duration
	tracer       trace.Tracer
}

// NewRecorder creates a recorder writing to repo
func NewRecorder(repo audit.EventRepository, logger *zap.Logger, cfg RecorderConfig) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	return &Recorder{
		repo:         repo,
		logger:       logger,
		clock:        clock.OrReal(cfg.Clock),
		failures:     cfg.Failures,
		writeTimeout: cfg.WriteTimeout,
		tracer:       otel.Tracer("audit.recorder"),
	}
}

// Record builds, masks and stores an event. It returns the event as
// written, or nil if the event could not be built.
func (r *Recorder) Record(ctx context.Context, eventType audit.EventType, transactionID string, payload map[string]interface{}) *audit.Event {
	ctx, span := r.tracer.Start(ctx, "Recorder.Record",
		trace.WithAttributes(
			attribute.String("event.type", string(eventType)),
			attribute.String("transaction.id", transactionID),
		),
	)
	defer span.End()

	event, err := audit.NewEvent(eventType, transactionID, MaskPayload(payload), r.clock.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid audit event")
		r.logger.Error("invalid audit event",
			zap.String("event_type", string(eventType)),
			zap.String("transaction_id", transactionID),
			zap.Error(err))
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	if err := r.repo.Store(writeCtx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "audit sink failed")
		if r.failures != nil {
			r.failures.RecordAuditFailure(ctx, string(eventType))
		}
		r.logger.Error("audit sink failed, event logged instead",
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", string(event.Type)),
			zap.String("transaction_id", event.TransactionID),
			zap.Time("timestamp", event.Timestamp),
			zap.Any("payload", event.Payload),
			zap.Error(err))
	}

	return event
}

var (
	phoneKeys = map[string]struct{}{
		"phone":          {},
		"phone_number":   {},
		"customer_phone": {},
		"to":             {},
	}
	nationalIDKeys = map[string]struct{}{
		"national_id": {},
		"cnic":        {},
	}
	// free text that may quote a number, e.g. provider error messages
	freeTextKeys = map[string]struct{}{
		"error":   {},
		"reason":  {},
		"message": {},
	}
)

// MaskPayload returns a copy of payload with known sensitive string values
// masked. Already masked values are left as they are.
func MaskPayload(payload map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		if _, sensitive := phoneKeys[k]; sensitive {
			masked[k] = values.MaskPhone(s)
			continue
		}
		if _, sensitive := nationalIDKeys[k]; sensitive {
			masked[k] = values.MaskNationalID(s)
			continue
		}
		if _, free := freeTextKeys[k]; free {
			masked[k] = values.ScrubPhones(s)
			continue
		}
		masked[k] = v
	}
	return masked
}
