package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/resilience"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/fraud"
)

func sampleFeatures() fraud.FeatureVector {
	return fraud.FeatureVector{
		Amount:              50000,
		AmountDeviation:     3.2,
		TransactionCount24h: 4,
		MerchantCategory:    "electronics",
		HourOfDay:           2,
		DayOfWeek:           6,
		IsWeekend:           true,
		DeviceChanged:       false,
		LocationChanged:     true,
	}
}

func TestClient_Predict(t *testing.T) {
	var got map[string]map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"fraud_probability": 0.87, "is_fraud": true, "confidence": 0.74}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/predict", time.Second, nil, nil)
	p, err := client.Predict(context.Background(), sampleFeatures())
	require.NoError(t, err)
	assert.InDelta(t, 0.87, p, 1e-9)

	features := got["features"]
	require.NotNil(t, features)
	assert.EqualValues(t, 50000, features["amount"])
	assert.EqualValues(t, 4, features["transaction_count_24h"])
	assert.Equal(t, "electronics", features["merchant_category"])
	assert.EqualValues(t, 1, features["is_weekend"])
	assert.EqualValues(t, 0, features["device_change"])
	assert.EqualValues(t, 1, features["location_change"])
}

func TestClient_PredictErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "bad request", status: http.StatusBadRequest, body: `{}`},
		{name: "malformed body", status: http.StatusOK, body: `not json`},
		{name: "missing probability", status: http.StatusOK, body: `{"is_fraud": false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, nil, nil).Predict(context.Background(), sampleFeatures())
			assert.Error(t, err)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewClient(srv.URL, 5*time.Second, nil, nil).Predict(ctx, sampleFeatures())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	}, nil)
	client := NewClient(srv.URL, time.Second, breaker, nil)

	for i := 0; i < 2; i++ {
		_, err := client.Predict(context.Background(), sampleFeatures())
		require.Error(t, err)
	}
	assert.Equal(t, resilience.CircuitOpen, breaker.State())

	_, err := client.Predict(context.Background(), sampleFeatures())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
