package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the pipeline's domain metrics
type Registry struct {
	meter metric.Meter

	// Scoring
	RiskScore         metric.Int64Histogram
	ScoringCounter    metric.Int64Counter
	ScoringLatency    metric.Float64Histogram
	TransactionAmount metric.Float64Histogram

	// Decisions and verification
	DecisionCounter     metric.Int64Counter
	VerificationCounter metric.Int64Counter
	SessionsOpened      metric.Int64Counter

	// Telephony
	CallCounter metric.Int64Counter

	// System
	AuditSinkFailures      metric.Int64Counter
	DatabaseConnectionPool metric.Int64ObservableGauge

	mu         sync.RWMutex
	poolSizeFn func() int64
}

// NewRegistry creates a registry on the global meter provider
func NewRegistry(meterName string) (*Registry, error) {
	r := &Registry{meter: otel.Meter(meterName)}

	if err := r.initScoringMetrics(); err != nil {
		return nil, err
	}
	if err := r.initVerificationMetrics(); err != nil {
		return nil, err
	}
	if err := r.initSystemMetrics(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) initScoringMetrics() error {
	var err error

	r.RiskScore, err = r.meter.Int64Histogram(
		"fsu.fraud.risk_score",
		metric.WithDescription("Distribution of transaction risk scores"),
		metric.WithExplicitBucketBoundaries(0, 10, 25, 50, 75, 90, 100),
	)
	if err != nil {
		return err
	}

	r.ScoringCounter, err = r.meter.Int64Counter(
		"fsu.fraud.scoring_total",
		metric.WithDescription("Scored transactions by strategy"),
	)
	if err != nil {
		return err
	}

	r.ScoringLatency, err = r.meter.Float64Histogram(
		"fsu.fraud.scoring_duration",
		metric.WithDescription("Time to produce a risk score in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 50, 100, 250, 500, 1000, 2000, 5000),
	)
	if err != nil {
		return err
	}

	r.TransactionAmount, err = r.meter.Float64Histogram(
		"fsu.transaction.amount",
		metric.WithDescription("Submitted transaction amounts"),
		metric.WithExplicitBucketBoundaries(100, 1000, 10000, 50000, 100000, 500000, 1000000),
	)
	return err
}

func (r *Registry) initVerificationMetrics() error {
	var err error

	r.DecisionCounter, err = r.meter.Int64Counter(
		"fsu.pipeline.decision_total",
		metric.WithDescription("Threshold decisions by resulting status"),
	)
	if err != nil {
		return err
	}

	r.VerificationCounter, err = r.meter.Int64Counter(
		"fsu.verification.attempt_total",
		metric.WithDescription("Verification attempts by outcome"),
	)
	if err != nil {
		return err
	}

	r.SessionsOpened, err = r.meter.Int64Counter(
		"fsu.verification.sessions_opened_total",
		metric.WithDescription("Verification sessions opened"),
	)
	if err != nil {
		return err
	}

	r.CallCounter, err = r.meter.Int64Counter(
		"fsu.telephony.call_total",
		metric.WithDescription("Challenge calls placed"),
	)
	return err
}

func (r *Registry) initSystemMetrics() error {
	var err error

	r.AuditSinkFailures, err = r.meter.Int64Counter(
		"fsu.audit.sink_failure_total",
		metric.WithDescription("Audit events that could not be written to the sink"),
	)
	if err != nil {
		return err
	}

	r.DatabaseConnectionPool, err = r.meter.Int64ObservableGauge(
		"fsu.system.db_connection_pool",
		metric.WithDescription("Database connections currently open"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			if r.poolSizeFn != nil {
				o.Observe(r.poolSizeFn())
			}
			return nil
		}),
	)
	return err
}

// ObservePoolSize registers the source for the connection pool gauge
func (r *Registry) ObservePoolSize(fn func() int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poolSizeFn = fn
}

// RecordScore records one scoring run
func (r *Registry) RecordScore(ctx context.Context, score int, strategy string, latency time.Duration) {
	attrs := metric.WithAttributes(attribute.String("strategy", strategy))

	r.RiskScore.Record(ctx, int64(score), attrs)
	r.ScoringCounter.Add(ctx, 1, attrs)
	r.ScoringLatency.Record(ctx, float64(latency.Microseconds())/1000, attrs)
}

// RecordTransactionAmount records a submitted amount
func (r *Registry) RecordTransactionAmount(ctx context.Context, amount float64, currency string) {
	r.TransactionAmount.Record(ctx, amount, metric.WithAttributes(attribute.String("currency", currency)))
}

// RecordDecision records the status a threshold decision produced
func (r *Registry) RecordDecision(ctx context.Context, status string) {
	r.DecisionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordSessionOpened counts a new verification session
func (r *Registry) RecordSessionOpened(ctx context.Context) {
	r.SessionsOpened.Add(ctx, 1)
}

// RecordVerificationOutcome counts one attempt by outcome
func (r *Registry) RecordVerificationOutcome(ctx context.Context, outcome string) {
	r.VerificationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCall counts a challenge call attempt
func (r *Registry) RecordCall(ctx context.Context, success bool) {
	r.CallCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordAuditFailure counts an event the sink rejected
func (r *Registry) RecordAuditFailure(ctx context.Context, eventType string) {
	r.AuditSinkFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}
