// Package tracker owns the dual-layer status read/write path for meetings
// moving through the processing pipeline.
//
// Reads are cache-aside: try the cache, fall back to the durable store on
// miss or error, repopulate opportunistically. Writes are write-through:
// the durable upsert must commit (with bounded retry) before the cache is
// touched, so the cache can never show a status that was never persisted.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/domain"
)

// ErrNotFound is returned by Store.Get when no record exists for the meeting.
// It is the one store error the read path treats as a miss, not a failure.
var ErrNotFound = errors.New("status record not found")

// ErrCacheMiss is returned by Cache.Get for absent or expired entries.
var ErrCacheMiss = errors.New("cache miss")

// ErrStoreUnavailable wraps a failed durable read. Callers must not confuse
// it with a genuine miss: a miss yields the synthetic not_started record.
var ErrStoreUnavailable = errors.New("status store unavailable")

// ErrWriteFailed wraps a durable upsert that exhausted its retry budget.
// The cache is deliberately left untouched when this is returned.
var ErrWriteFailed = errors.New("status write failed")

// Store is the authoritative record of meeting status.
// Implementations must be safe for concurrent use and must serialize
// per-meeting mutations (atomic upsert keyed by meeting ID).
type Store interface {
	Get(ctx context.Context, meetingID uuid.UUID) (domain.StatusRecord, error)
	// Upsert persists the record, atomically incrementing the stored
	// attempts counter, and returns the committed counter value.
	Upsert(ctx context.Context, rec domain.StatusRecord) (attempts int, err error)
}

// Cache is the short-TTL mirror of recent records. Implementations must
// tolerate being unreachable; the tracker treats every cache error as
// non-fatal.
type Cache interface {
	Get(ctx context.Context, meetingID uuid.UUID) (domain.StatusRecord, error)
	Set(ctx context.Context, rec domain.StatusRecord, ttl time.Duration) error
}

// CacheBreaker short-circuits cache access while the cache is known-bad.
type CacheBreaker interface {
	Allow() error
	RecordSuccess()
	RecordFailure()
}

// MetricsSink defines the interface for recording tracker metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	ReadOutcome(source string)
	CacheError(op string)
	CacheRepopulated(ok bool)
	CacheSkipped()
	StoreRetry(attempt int)
	WriteOutcome(outcome string, duration time.Duration)
	CacheWriteAfterCommit(ok bool)
}

// Tracker orchestrates the read and write paths. Safe for concurrent use;
// operations on different meetings are fully independent.
//
// Status transitions are unconstrained: any stage may overwrite any status,
// including regressing success to in_progress on a replay. Concurrent writes
// to the same meeting resolve last-writer-wins at the store; last_step tags
// every write so races are diagnosable after the fact.
type Tracker struct {
	store    Store
	cache    Cache        // optional, nil = store only
	breaker  CacheBreaker // optional, nil = no short-circuit
	metrics  MetricsSink  // optional, nil = disabled
	retry    RetryPolicy
	cacheTTL time.Duration
	clock    func() time.Time
}

// DefaultCacheTTL bounds cache staleness. A cached answer is at most this
// far behind the store.
const DefaultCacheTTL = 60 * time.Second

func New(store Store) *Tracker {
	return &Tracker{
		store:    store,
		retry:    DefaultRetryPolicy(),
		cacheTTL: DefaultCacheTTL,
		clock:    time.Now,
	}
}

// WithCache attaches the fast-cache layer with the given TTL.
func (t *Tracker) WithCache(cache Cache, ttl time.Duration) *Tracker {
	t.cache = cache
	if ttl > 0 {
		t.cacheTTL = ttl
	}
	return t
}

// WithCacheBreaker attaches a circuit breaker guarding cache access.
func (t *Tracker) WithCacheBreaker(b CacheBreaker) *Tracker {
	t.breaker = b
	return t
}

// WithMetrics attaches a metrics sink to the tracker.
func (t *Tracker) WithMetrics(sink MetricsSink) *Tracker {
	t.metrics = sink
	return t
}

// WithRetryPolicy overrides the durable-write retry policy.
func (t *Tracker) WithRetryPolicy(p RetryPolicy) *Tracker {
	t.retry = p
	return t
}

// WithClock overrides the time source. Only for use in tests.
func (t *Tracker) WithClock(clock func() time.Time) *Tracker {
	t.clock = clock
	return t
}

// GetStatus returns the best-known record for the meeting. Cache problems
// never fail the call; a store read failure (not a miss) returns
// ErrStoreUnavailable. Unknown meetings yield the synthetic not_started
// record without touching either layer.
func (t *Tracker) GetStatus(ctx context.Context, meetingID uuid.UUID) (domain.StatusRecord, error) {
	if rec, ok := t.cacheLookup(ctx, meetingID); ok {
		t.observeRead("cache")
		return rec, nil
	}

	rec, err := t.store.Get(ctx, meetingID)
	if errors.Is(err, ErrNotFound) {
		t.observeRead("default")
		return domain.NotStartedRecord(meetingID), nil
	}
	if err != nil {
		return domain.StatusRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	t.repopulate(ctx, rec)
	t.observeRead("store")
	return rec, nil
}

// UpdateStatus durably records a transition, then mirrors it to the cache.
// The upsert is retried per the tracker's policy; if the budget exhausts,
// ErrWriteFailed is returned and the cache keeps whatever it held before,
// so it never shows a status that was never durably committed.
func (t *Tracker) UpdateStatus(ctx context.Context, meetingID uuid.UUID, status domain.MeetingStatus, step, errorMessage string) (domain.StatusRecord, error) {
	started := t.clock()

	if _, err := domain.ParseStatus(string(status)); err != nil {
		t.observeWrite("rejected", started)
		return domain.StatusRecord{}, err
	}
	if status != domain.StatusFailure {
		// error_message only accompanies failure; cleared on any other write.
		errorMessage = ""
	}

	rec := domain.StatusRecord{
		MeetingID:    meetingID,
		Status:       status,
		LastStep:     step,
		UpdatedAt:    started.UTC(),
		ErrorMessage: errorMessage,
	}

	err := t.retry.do(ctx, func(ctx context.Context) error {
		attempts, err := t.store.Upsert(ctx, rec)
		if err != nil {
			return err
		}
		rec.Attempts = attempts
		return nil
	}, func(attempt int, err error, nextDelay time.Duration) {
		log.Printf("tracker: meeting=%s upsert attempt=%d failed, retrying in %s: %v",
			meetingID, attempt, nextDelay.Round(time.Millisecond), err)
		if t.metrics != nil {
			t.metrics.StoreRetry(attempt + 1)
		}
	})
	if err != nil {
		log.Printf("tracker: meeting=%s write failed after %d attempts: %v",
			meetingID, t.retry.MaxAttempts, err)
		t.observeWrite("failed", started)
		return domain.StatusRecord{}, fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	t.mirrorToCache(ctx, rec)
	t.observeWrite("committed", started)
	return rec, nil
}

// cacheLookup returns (record, true) on a usable cache hit. Misses, errors,
// and an open breaker all report false; errors are logged and counted only.
func (t *Tracker) cacheLookup(ctx context.Context, meetingID uuid.UUID) (domain.StatusRecord, bool) {
	if t.cache == nil {
		return domain.StatusRecord{}, false
	}
	if t.breaker != nil && t.breaker.Allow() != nil {
		if t.metrics != nil {
			t.metrics.CacheSkipped()
		}
		return domain.StatusRecord{}, false
	}

	rec, err := t.cache.Get(ctx, meetingID)
	if errors.Is(err, ErrCacheMiss) {
		t.recordCacheSuccess()
		return domain.StatusRecord{}, false
	}
	if err != nil {
		log.Printf("tracker: meeting=%s cache read error (falling back to store): %v", meetingID, err)
		if t.metrics != nil {
			t.metrics.CacheError("get")
		}
		t.recordCacheFailure()
		return domain.StatusRecord{}, false
	}

	t.recordCacheSuccess()
	return rec, true
}

// repopulate writes a store-read record back into the cache. Best effort.
func (t *Tracker) repopulate(ctx context.Context, rec domain.StatusRecord) {
	if t.cache == nil {
		return
	}
	if t.breaker != nil && t.breaker.Allow() != nil {
		return
	}

	if err := t.cache.Set(ctx, rec, t.cacheTTL); err != nil {
		log.Printf("tracker: meeting=%s cache repopulate failed: %v", rec.MeetingID, err)
		if t.metrics != nil {
			t.metrics.CacheError("set")
			t.metrics.CacheRepopulated(false)
		}
		t.recordCacheFailure()
		return
	}
	if t.metrics != nil {
		t.metrics.CacheRepopulated(true)
	}
	t.recordCacheSuccess()
}

// mirrorToCache writes the committed record through to the cache.
// Durability already succeeded, so failure here is swallowed: the next
// read's fallback path repairs the stale entry.
func (t *Tracker) mirrorToCache(ctx context.Context, rec domain.StatusRecord) {
	if t.cache == nil {
		return
	}
	if t.breaker != nil && t.breaker.Allow() != nil {
		return
	}

	if err := t.cache.Set(ctx, rec, t.cacheTTL); err != nil {
		log.Printf("tracker: meeting=%s cache write after commit failed: %v", rec.MeetingID, err)
		if t.metrics != nil {
			t.metrics.CacheError("set")
			t.metrics.CacheWriteAfterCommit(false)
		}
		t.recordCacheFailure()
		return
	}
	if t.metrics != nil {
		t.metrics.CacheWriteAfterCommit(true)
	}
	t.recordCacheSuccess()
}

func (t *Tracker) recordCacheSuccess() {
	if t.breaker != nil {
		t.breaker.RecordSuccess()
	}
}

func (t *Tracker) recordCacheFailure() {
	if t.breaker != nil {
		t.breaker.RecordFailure()
	}
}

func (t *Tracker) observeRead(source string) {
	if t.metrics != nil {
		t.metrics.ReadOutcome(source)
	}
}

func (t *Tracker) observeWrite(outcome string, started time.Time) {
	if t.metrics != nil {
		t.metrics.WriteOutcome(outcome, t.clock().Sub(started))
	}
}
