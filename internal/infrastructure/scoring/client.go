package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/infrastructure/resilience"
	"github.com/davidleathers/fraud-stepup-backend/internal/service/fraud"
)

// maxResponseBytes caps how much of a model response is read
const maxResponseBytes = 64 << 10

// Client calls the external fraud model over HTTP
type Client struct {
	endpoint string
	http     *http.Client
	breaker  *resilience.CircuitBreaker
	logger   *zap.Logger
}

// NewClient creates a model client posting to endpoint. breaker may be nil.
func NewClient(endpoint string, timeout time.Duration, breaker *resilience.CircuitBreaker, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
		logger:  logger,
	}
}

type predictRequest struct {
	Features wireFeatures `json:"features"`
}

// wireFeatures is the model's input schema; flags travel as 0/1
type wireFeatures struct {
	Amount              float64 `json:"amount"`
	AmountDeviation     float64 `json:"amount_deviation"`
	TransactionCount24h int     `json:"transaction_count_24h"`
	MerchantCategory    string  `json:"merchant_category"`
	HourOfDay           int     `json:"hour_of_day"`
	DayOfWeek           int     `json:"day_of_week"`
	IsWeekend           int     `json:"is_weekend"`
	DeviceChange        int     `json:"device_change"`
	LocationChange      int     `json:"location_change"`
}

type predictResponse struct {
	FraudProbability *float64 `json:"fraud_probability"`
	IsFraud          bool     `json:"is_fraud"`
	Confidence       float64  `json:"confidence"`
}

func toWire(f fraud.FeatureVector) wireFeatures {
	return wireFeatures{
		Amount:              f.Amount,
		AmountDeviation:     f.AmountDeviation,
		TransactionCount24h: f.TransactionCount24h,
		MerchantCategory:    f.MerchantCategory,
		HourOfDay:           f.HourOfDay,
		DayOfWeek:           f.DayOfWeek,
		IsWeekend:           flag(f.IsWeekend),
		DeviceChange:        flag(f.DeviceChanged),
		LocationChange:      flag(f.LocationChanged),
	}
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Predict returns the model's fraud probability for features
func (c *Client) Predict(ctx context.Context, features fraud.FeatureVector) (float64, error) {
	var probability float64
	call := func(ctx context.Context) error {
		p, err := c.predict(ctx, features)
		if err != nil {
			return err
		}
		probability = p
		return nil
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		c.logger.Debug("model prediction failed", zap.Error(err))
		return 0, err
	}
	return probability, nil
}

func (c *Client) predict(ctx context.Context, features fraud.FeatureVector) (float64, error) {
	body, err := json.Marshal(predictRequest{Features: toWire(features)})
	if err != nil {
		return 0, fmt.Errorf("scoring: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("scoring: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("scoring: call model: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, fmt.Errorf("scoring: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("scoring: model returned status %d", resp.StatusCode)
	}

	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, fmt.Errorf("scoring: decode response: %w", err)
	}
	if out.FraudProbability == nil {
		return 0, fmt.Errorf("scoring: response missing fraud_probability")
	}

	return *out.FraudProbability, nil
}
