package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/davidleathers/fraud-stepup-backend/internal/domain/clock"
)

// ErrCircuitOpen is returned without calling through while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitState is the breaker's position
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures breaker behavior
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open the circuit
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before a probe
	ResetTimeout time.Duration
	// HalfOpenMaxRequests probes may be in flight while half-open
	HalfOpenMaxRequests int
}

// CircuitBreaker stops calling a failing dependency for a cool-down period.
// Safe for concurrent use.
type CircuitBreaker struct {
	config        CircuitBreakerConfig
	clock         clock.Clock
	onStateChange func(from, to CircuitState)

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time
	inFlight int
}

// NewCircuitBreaker creates a closed breaker. A nil clock uses the real clock.
func NewCircuitBreaker(config CircuitBreakerConfig, c clock.Clock) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = 1
	}
	return &CircuitBreaker{config: config, clock: clock.OrReal(c)}
}

// OnStateChange registers a callback invoked on every transition. Call it
// before the breaker is shared.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to CircuitState)) {
	cb.onStateChange = fn
}

// Execute runs fn unless the circuit is open. Cancellation by the caller
// does not count as a dependency failure; a deadline does.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)
	switch {
	case err == nil:
		cb.recordSuccess()
	case errors.Is(ctx.Err(), context.Canceled):
		cb.release()
	default:
		cb.recordFailure()
	}
	return err
}

// State returns the current state, moving open to half-open once the reset
// timeout has passed
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.refresh()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		if cb.inFlight >= cb.config.HalfOpenMaxRequests {
			return false
		}
		cb.inFlight++
		return true
	default:
		return false
	}
}

// refresh requires cb.mu
func (cb *CircuitBreaker) refresh() {
	if cb.state == CircuitOpen && cb.clock.Now().Sub(cb.openedAt) >= cb.config.ResetTimeout {
		cb.transition(CircuitHalfOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state == CircuitHalfOpen {
		cb.inFlight = 0
		cb.transition(CircuitClosed)
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	switch cb.state {
	case CircuitHalfOpen:
		cb.inFlight = 0
		cb.open()
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.open()
		}
	}
}

func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
}

// open requires cb.mu
func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.clock.Now()
	cb.transition(CircuitOpen)
}

// transition requires cb.mu
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == CircuitClosed {
		cb.failures = 0
	}
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}
