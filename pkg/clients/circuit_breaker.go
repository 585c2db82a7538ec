package clients

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int32

const (
	// StateClosed allows all requests to pass through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen lets a single trial request through to test recovery
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig is the configuration for circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening
	SuccessThreshold int           // Trial successes before closing
	Timeout          time.Duration // Time spent open before a trial request
}

// CircuitBreaker stops calling a service that keeps failing. A nil breaker
// admits everything.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	logger *zap.Logger
	now    func() time.Time

	state     CircuitState
	failures  int
	successes int
	trialOpen bool
	openedAt  time.Time

	mu sync.Mutex
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		config: config,
		logger: logger.With(zap.String("component", "circuit_breaker")),
		now:    time.Now,
	}
}

// Allow reports whether a request may proceed
func (cb *CircuitBreaker) Allow() bool {
	if cb == nil {
		return true
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Timeout {
			return false
		}
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.trialOpen = true
		cb.logger.Info("circuit breaker half-open")
		return true
	case StateHalfOpen:
		if cb.trialOpen {
			return false
		}
		cb.trialOpen = true
		return true
	default:
		return true
	}
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.trialOpen = false
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.logger.Info("circuit breaker closed")
		}
	}
}

// RecordFailure records a failed request
func (cb *CircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.open()
		}
	case StateHalfOpen:
		cb.open()
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.trialOpen = false
	cb.logger.Warn("circuit breaker opened",
		zap.Time("retry_after", cb.openedAt.Add(cb.config.Timeout)),
		zap.Int("consecutive_failures", cb.failures))
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	if cb == nil {
		return StateClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
