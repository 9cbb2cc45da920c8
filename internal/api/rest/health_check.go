package rest

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// HealthStatus is the outcome of a health check
type HealthStatus string

const (
	HealthStatusPass HealthStatus = "pass"
	HealthStatusFail HealthStatus = "fail"
)

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// HealthCheckResult is one dependency's result
type HealthCheckResult struct {
	Status       HealthStatus `json:"status"`
	Error        string       `json:"error,omitempty"`
	ResponseTime string       `json:"responseTime"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  HealthStatus                 `json:"status"`
	Version string                       `json:"version"`
	Uptime  string                       `json:"uptime"`
	Checks  map[string]HealthCheckResult `json:"checks,omitempty"`
}

// HealthService runs dependency checks
type HealthService struct {
	mu        sync.RWMutex
	checks    map[string]CheckFunc
	version   string
	timeout   time.Duration
	startTime time.Time
	tracer    trace.Tracer
}

// NewHealthService creates a health service. Each check gets timeout.
func NewHealthService(version string, timeout time.Duration) *HealthService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthService{
		checks:    make(map[string]CheckFunc),
		version:   version,
		timeout:   timeout,
		startTime: time.Now(),
		tracer:    otel.Tracer("api.rest.health"),
	}
}

// Register adds a named check
func (h *HealthService) Register(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Check runs every registered check concurrently
func (h *HealthService) Check(ctx context.Context) HealthResponse {
	ctx, span := h.tracer.Start(ctx, "health.check")
	defer span.End()

	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make([]HealthCheckResult, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		h.mu.RLock()
		check := h.checks[name]
		h.mu.RUnlock()

		wg.Add(1)
		go func(i int, check CheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			start := time.Now()
			err := check(checkCtx)
			res := HealthCheckResult{Status: HealthStatusPass, ResponseTime: time.Since(start).String()}
			if err != nil {
				res.Status = HealthStatusFail
				res.Error = err.Error()
			}
			results[i] = res
		}(i, check)
	}
	wg.Wait()

	resp := HealthResponse{
		Status:  HealthStatusPass,
		Version: h.version,
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
		Checks:  make(map[string]HealthCheckResult, len(names)),
	}
	for i, name := range names {
		resp.Checks[name] = results[i]
		if results[i].Status == HealthStatusFail {
			resp.Status = HealthStatusFail
		}
	}
	return resp
}

// Handler serves GET /health; failing checks return 503
func (h *HealthService) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := h.Check(r.Context())
		status := http.StatusOK
		if resp.Status == HealthStatusFail {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
