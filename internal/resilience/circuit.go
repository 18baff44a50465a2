package resilience

import (
	"sync"
	"time"
)

// State is one of the three circuit-breaker states.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerOption configures a CircuitBreaker at construction.
type CircuitBreakerOption func(*CircuitBreaker)

// WithFailureThreshold sets the failure count that trips the breaker.
func WithFailureThreshold(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.failureThreshold = n }
}

// WithResetTimeout sets how long the breaker stays OPEN before probing.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.resetTimeout = d }
}

// WithHalfOpenRequests sets how many successful probes in HALF_OPEN close
// the breaker again.
func WithHalfOpenRequests(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) { cb.halfOpenRequests = n }
}

// CircuitBreaker is a three-state fault-isolation machine (spec.md §4.11),
// generalized from the teacher's internal/errors.CircuitBreaker to support N
// half-open probes and a remaining-time-carrying CircuitOpen error.
type CircuitBreaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	resetTimeout     time.Duration
	halfOpenRequests int

	state        State
	failures     int
	successes    int // successes observed while HALF_OPEN
	lastFailure  time.Time
	openedAt     time.Time
}

// NewCircuitBreaker builds a breaker with the teacher's defaults (threshold
// 5, reset 60s, 1 half-open probe) unless overridden.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: 5,
		resetTimeout:     60 * time.Second,
		halfOpenRequests: 1,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// State returns the current state, first applying the OPEN->HALF_OPEN
// time-based transition if due.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		cb.state = StateHalfOpen
		cb.successes = 0
	}
	return cb.state
}

// remaining returns how long until an OPEN breaker becomes eligible to probe.
func (cb *CircuitBreaker) remaining() time.Duration {
	r := cb.resetTimeout - time.Since(cb.openedAt)
	if r < 0 {
		return 0
	}
	return r
}

// Allow reports whether a call may proceed, without executing it.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState() != StateOpen
}

// RecordSuccess reports a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.currentState() {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.halfOpenRequests {
			cb.state = StateClosed
			cb.failures = 0
			cb.successes = 0
		}
	case StateClosed:
		cb.failures = 0
	}
}

// RecordFailure reports a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.lastFailure = time.Now()
	switch cb.currentState() {
	case StateHalfOpen:
		cb.trip()
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.trip()
		}
	}
}

// trip forces the breaker OPEN. Caller must hold cb.mu.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = time.Now()
	cb.successes = 0
}

// Trip forces the breaker OPEN regardless of current failure count.
func (cb *CircuitBreaker) Trip() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trip()
}

// Reset forces the breaker back to CLOSED with a clean failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
}

// FailureCount returns the current consecutive-failure count (CLOSED state).
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Execute runs fn if the breaker admits the call, recording the outcome.
func Execute(cb *CircuitBreaker, fn func() error) error {
	_, err := ExecuteWithResult(cb, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// ExecuteWithResult is the generic form of Execute.
func ExecuteWithResult[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T

	cb.mu.Lock()
	if cb.currentState() == StateOpen {
		remaining := cb.remaining()
		cb.mu.Unlock()
		return zero, New(ErrCodeCircuitOpen, "circuit breaker open", nil).
			WithDetail("remainingMs", remaining.Milliseconds()).
			WithDetail("breaker", cb.name)
	}
	cb.mu.Unlock()

	val, err := fn()
	if err != nil {
		cb.RecordFailure()
		return zero, err
	}
	cb.RecordSuccess()
	return val, nil
}
