package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/resilience"
)

// newPrometheusRegistry returns the registry served on /metrics with the
// runtime collectors and a build info gauge
func newPrometheusRegistry(version string) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fsu",
		Name:      "build_info",
		Help:      "Build information of the running API",
	}, []string{"version"})
	buildInfo.WithLabelValues(version).Set(1)
	reg.MustRegister(buildInfo)

	return reg
}

// observeBreaker exports the breaker state (0 closed, 1 open, 2 half-open)
// and a transition counter, and logs every transition
func observeBreaker(cb *resilience.CircuitBreaker, name string, reg prometheus.Registerer, logger *zap.Logger) {
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fsu",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current circuit breaker state",
	}, []string{"breaker"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fsu",
		Subsystem: "circuit_breaker",
		Name:      "transitions_total",
		Help:      "Circuit breaker state transitions",
	}, []string{"breaker", "to"})
	reg.MustRegister(state, transitions)

	state.WithLabelValues(name).Set(float64(cb.State()))
	cb.OnStateChange(func(from, to resilience.CircuitState) {
		state.WithLabelValues(name).Set(float64(to))
		transitions.WithLabelValues(name, to.String()).Inc()
		logger.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	})
}
