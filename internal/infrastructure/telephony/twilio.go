package telephony

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/errors"
)

// DefaultAPIBaseURL is Twilio's REST API host
const DefaultAPIBaseURL = "https://api.twilio.com"

// statusCallbackEvents are the progress events Twilio posts back
var statusCallbackEvents = []string{"initiated", "ringing", "answered", "completed"}

// TwilioConfig holds account credentials and retry policy. Creating a call
// is not idempotent, so MaxRetries only applies to failures where Twilio
// provably did not create one: dial errors and 429 responses.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	APIBaseURL string
	Timeout    time.Duration
	MaxRetries int
	// InitialRetryDelay is the first backoff interval between attempts
	InitialRetryDelay time.Duration
}

// TwilioProvider places calls through the Twilio Calls API
type TwilioProvider struct {
	client *http.Client
	cfg    TwilioConfig
	logger *zap.Logger
}

// NewTwilioProvider creates a provider. Credentials are required.
func NewTwilioProvider(cfg TwilioConfig, logger *zap.Logger) (*TwilioProvider, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.NewValidationError("MISSING_TWILIO_CREDENTIALS", "twilio account sid and auth token are required")
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialRetryDelay <= 0 {
		cfg.InitialRetryDelay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TwilioProvider{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cfg:    cfg,
		logger: logger,
	}, nil
}

// GetProviderName returns the provider name
func (p *TwilioProvider) GetProviderName() string {
	return "twilio"
}

type twilioCall struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// APIError is a non-2xx answer from the Twilio API. Message is Twilio's
// text and may echo the dialed number.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twilio: status %d", e.Status)
	}
	return fmt.Sprintf("twilio: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// ProviderStatus returns the HTTP status Twilio answered with
func (e *APIError) ProviderStatus() int { return e.Status }

// ProviderCode returns Twilio's error code, zero when none was sent
func (e *APIError) ProviderCode() int { return e.Code }

// InitiateCall creates an outbound call and returns its SID
func (p *TwilioProvider) InitiateCall(ctx context.Context, from, to, voiceURL, statusURL string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Url", voiceURL)
	form.Set("Method", http.MethodPost)
	if statusURL != "" {
		form.Set("StatusCallback", statusURL)
		form.Set("StatusCallbackMethod", http.MethodPost)
		for _, ev := range statusCallbackEvents {
			form.Add("StatusCallbackEvent", ev)
		}
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", p.cfg.APIBaseURL, url.PathEscape(p.cfg.AccountSID))
	body := form.Encode()

	var call twilioCall
	attempt := 0
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil || !neverSent(err) {
				return backoff.Permanent(err)
			}
			p.logger.Warn("twilio unreachable", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("twilio: read response: %w", err))
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			apiErr := decodeTwilioError(resp.StatusCode, raw)
			if resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(apiErr)
			}
			p.logger.Warn("twilio rate limited call creation",
				zap.Int("attempt", attempt),
				zap.Int("status", resp.StatusCode))
			return apiErr
		}

		if err := json.Unmarshal(raw, &call); err != nil {
			return backoff.Permanent(fmt.Errorf("twilio: decode call: %w", err))
		}
		if call.SID == "" {
			return backoff.Permanent(fmt.Errorf("twilio: response missing call sid"))
		}
		return nil
	}

	if err := backoff.Retry(operation, p.retryPolicy(ctx)); err != nil {
		return "", err
	}
	return call.SID, nil
}

func (p *TwilioProvider) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialRetryDelay
	b.Multiplier = 2
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.cfg.MaxRetries)), ctx)
}

func decodeTwilioError(status int, raw []byte) *APIError {
	apiErr := &APIError{Status: status}
	var body twilioError
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	return apiErr
}

// neverSent reports whether err happened before the request left this
// host. Anything later may have created the call on Twilio's side.
func neverSent(err error) bool {
	var opErr *net.OpError
	if stderrors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return stderrors.As(err, &dnsErr)
}
