package fetch

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	RecoveryTimeout  time.Duration
	HalfOpenRequests int
}

// CircuitBreaker fails calls fast after consecutive transport or 5xx failures
// against the remote API, then lets a few trial requests through after RecoveryTimeout.
type CircuitBreaker struct {
	cfg             CircuitBreakerConfig
	state           breakerState
	failures        int
	halfOpenSuccess int
	openedAt        time.Time
	now             func() time.Time
	logger          zerolog.Logger
	mu              sync.Mutex
}

// NewCircuitBreaker creates a new CircuitBreaker
func NewCircuitBreaker(cfg CircuitBreakerConfig, logger zerolog.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = 2
	}
	return &CircuitBreaker{
		cfg:    cfg,
		state:  breakerClosed,
		now:    time.Now,
		logger: logger,
	}
}

// Allow returns true if a request may be sent
func (cb *CircuitBreaker) Allow() bool {
	if !cb.cfg.Enabled {
		return true
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerHalfOpen:
		return cb.halfOpenSuccess < cb.cfg.HalfOpenRequests
	case breakerOpen:
		if cb.now().Sub(cb.openedAt) >= cb.cfg.RecoveryTimeout {
			cb.transition(breakerHalfOpen)
			cb.halfOpenSuccess = 0
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	if !cb.cfg.Enabled {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerHalfOpen:
		cb.halfOpenSuccess++
		if cb.halfOpenSuccess >= cb.cfg.HalfOpenRequests {
			cb.transition(breakerClosed)
			cb.failures = 0
		}
	case breakerClosed:
		cb.failures = 0
	}
}

// RecordFailure records a failed request
func (cb *CircuitBreaker) RecordFailure() {
	if !cb.cfg.Enabled {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.openedAt = cb.now()
			cb.transition(breakerOpen)
		}
	case breakerHalfOpen:
		cb.openedAt = cb.now()
		cb.halfOpenSuccess = 0
		cb.transition(breakerOpen)
	}
}

// State returns the current state name
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state.String()
}

// transition must be called with mu held
func (cb *CircuitBreaker) transition(to breakerState) {
	if cb.state == to {
		return
	}
	cb.logger.Warn().
		Str("from", cb.state.String()).
		Str("to", to.String()).
		Int("failures", cb.failures).
		Msg("circuit breaker state changed")
	cb.state = to
}
