package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Tracker read-path metrics
	ReadOutcome(source string)
	CacheError(op string)
	CacheRepopulated(ok bool)
	CacheSkipped()

	// Tracker write-path metrics
	StoreRetry(attempt int)
	WriteOutcome(outcome string, duration time.Duration)
	CacheWriteAfterCommit(ok bool)

	// Watchdog metrics
	StaleInProgressUpdate(count int)
}

// Source constants for ReadOutcome.
const (
	SourceCache   = "cache"
	SourceStore   = "store"
	SourceDefault = "default"
)

// Outcome constants for WriteOutcome.
const (
	OutcomeCommitted = "committed"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
)

// Op constants for CacheError.
const (
	CacheOpGet = "get"
	CacheOpSet = "set"
)
