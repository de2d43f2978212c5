// Package circuitbreaker guards a single flaky dependency. statussync uses
// it in front of the Redis cache: once Redis has failed threshold times in a
// row, reads stop paying a client timeout per call and go straight to the
// durable store until the cooldown elapses.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

type CircuitBreaker struct {
	mu                  sync.Mutex
	state               state
	consecutiveFailures int
	openedAt            time.Time

	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

// New creates a breaker that opens after threshold consecutive failures and
// lets one probe through after cooldown. A threshold of 0 disables the
// breaker: Allow always succeeds.
func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.threshold <= 0 {
		return nil
	}

	switch cb.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.clock().Sub(cb.openedAt) >= cb.cooldown {
			cb.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		// One probe is already in flight.
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = stateClosed
	cb.consecutiveFailures = 0
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.threshold <= 0 {
		return
	}

	cb.consecutiveFailures++
	if cb.consecutiveFailures >= cb.threshold {
		cb.state = stateOpen
		cb.openedAt = cb.clock()
	}
}
