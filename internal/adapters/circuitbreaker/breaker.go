// Package circuitbreaker guards the outbound service clients (LLM,
// embedding, entailment) so a dead endpoint fails fast instead of eating a
// timeout on every turn.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// halfOpenSuccesses is how many consecutive probes must succeed before an
// open circuit closes again.
const halfOpenSuccesses = 3

// CircuitBreaker trips open after maxFailures consecutive failures and
// probes again after the cooldown has passed.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	lastFailure time.Time

	maxFailures int
	cooldown    time.Duration
}

func New(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:       StateClosed,
		maxFailures: maxFailures,
		cooldown:    cooldown,
	}
}

// Execute runs fn unless the circuit is open. fn's error counts toward the
// failure threshold; ErrCircuitOpen is returned without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return true
	}
	if time.Since(cb.lastFailure) > cb.cooldown {
		cb.state = StateHalfOpen
		cb.successes = 0
		return true
	}
	return false
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailure = time.Now()
		if cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}
		return
	}

	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= halfOpenSuccesses {
			cb.state = StateClosed
			cb.failures = 0
		}
		return
	}
	cb.failures = 0
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
