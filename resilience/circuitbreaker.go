package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the operating state of a CircuitBreaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned by Execute when the breaker is open and the
// reset timeout has not yet elapsed.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// CircuitBreaker trips after a run of consecutive failures and rejects
// calls until a reset timeout elapses, at which point it moves to HalfOpen
// and lets calls through again. A success in HalfOpen closes the breaker; a
// failure reopens it. Concurrent calls in HalfOpen are not limited to one.
type CircuitBreaker struct {
	failureThreshold int
	resetTimeout     time.Duration

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
}

// NewCircuitBreaker creates a CircuitBreaker. A failureThreshold <= 0
// defaults to 5; a resetTimeout <= 0 defaults to 30s.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
	}
}

// State returns the breaker's current state, transitioning from Open to
// HalfOpen if the reset timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

func (cb *CircuitBreaker) stateLocked() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		cb.state = StateHalfOpen
	}
	return cb.state
}

// Execute runs fn if the breaker permits it. In Open state (before the reset
// timeout), it returns ErrCircuitOpen without calling fn. In HalfOpen state,
// it calls fn and transitions based on the outcome; it does not stop other
// callers from running fn at the same time.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	cb.mu.Lock()
	state := cb.stateLocked()
	if state == StateOpen {
		cb.mu.Unlock()
		return nil, ErrCircuitOpen
	}
	cb.mu.Unlock()

	result, err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
		return result, err
	}

	cb.failures = 0
	cb.state = StateClosed
	return result, nil
}

// Reset forces the breaker back to Closed and clears its failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
}
