package tracker

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds the durable-write retry loop. It is injected into the
// Tracker so tests can use zero-delay policies.
type RetryPolicy struct {
	// MaxAttempts is the total number of upsert attempts, first try included.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// Jitter is a fraction of the computed delay (0.0 to 1.0) randomized in
	// both directions, so concurrent writers don't retry in lockstep.
	Jitter float64
}

// DefaultRetryPolicy matches the write-path contract: three attempts with
// jittered exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.2,
	}
}

// onRetry is called before each retry sleep with the attempt number that
// just failed.
type onRetry func(attempt int, err error, nextDelay time.Duration)

// do runs fn until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. Returns the last error on exhaustion.
func (p RetryPolicy) do(ctx context.Context, fn func(ctx context.Context) error, notify onRetry) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		delay := p.delay(attempt)
		if notify != nil {
			notify(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// delay computes the backoff before the next attempt after the given failed
// attempt (1-based), with jitter applied.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))

	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}

	if p.Jitter > 0 {
		jitterRange := d * p.Jitter
		d = d - jitterRange + rand.Float64()*2*jitterRange
	}

	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
