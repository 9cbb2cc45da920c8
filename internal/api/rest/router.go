package rest

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// RouterConfig wires the handlers and middleware. Metrics, RateLimiter and
// MetricsHandler may be nil.
type RouterConfig struct {
	Transactions   *TransactionHandler
	Voice          *VoiceHandler
	Health         *HealthService
	Auth           *AuthMiddleware
	RateLimiter    *TenantRateLimiter
	Metrics        *HTTPMetrics
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

// NewRouter builds the API's HTTP handler
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()

	tenantChain := []Middleware{cfg.Auth.Middleware()}
	if cfg.RateLimiter != nil {
		tenantChain = append(tenantChain, cfg.RateLimiter.Middleware())
	}
	tenant := NewMiddlewareChain(tenantChain...)

	mux.Handle("POST /v1/transactions", tenant.Then(http.HandlerFunc(cfg.Transactions.Submit)))
	mux.Handle("GET /v1/transactions/{id}/verification", tenant.Then(http.HandlerFunc(cfg.Transactions.VerificationStatus)))
	mux.Handle("POST /v1/transactions/{id}/challenge-call", tenant.Then(http.HandlerFunc(cfg.Transactions.RetryChallengeCall)))

	mux.HandleFunc("POST /v1/voice/twiml", cfg.Voice.TwiML)
	mux.HandleFunc("POST /v1/voice/input", cfg.Voice.Input)
	mux.HandleFunc("POST /v1/voice/status", cfg.Voice.Status)

	if cfg.Health != nil {
		mux.Handle("GET /health", cfg.Health.Handler())
	}
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	middlewares := []Middleware{
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		RequestLoggingMiddleware(logger),
		SecurityHeadersMiddleware(),
	}
	// Metrics must sit next to the mux to see the matched pattern
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware())
	}

	handler := NewMiddlewareChain(middlewares...).Then(mux)
	return otelhttp.NewHandler(handler, "fsu-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
