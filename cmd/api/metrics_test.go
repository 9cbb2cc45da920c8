package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/resilience"
)

func TestObserveBreaker(t *testing.T) {
	reg := newPrometheusRegistry("test")
	clk := clock.NewMockClock(time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC))
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
	}, clk)
	observeBreaker(cb, "fraud_model", reg, zap.NewNop())

	boom := errors.New("boom")
	err := cb.Execute(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Equal(t, resilience.CircuitOpen, cb.State())

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["fsu_build_info"])
	assert.True(t, names["fsu_circuit_breaker_state"])
	assert.True(t, names["fsu_circuit_breaker_transitions_total"])

	count, err := testutil.GatherAndCount(reg, "fsu_circuit_breaker_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
