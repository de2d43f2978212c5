// Package watchdog reports meetings stuck in_progress.
//
// A meeting goes stale when a pipeline stage marked it in_progress and then
// died without writing a terminal status. The watchdog periodically scans
// the durable store and surfaces stale meetings through logs and the
// metrics gauge. It is observe-only: deciding whether a stuck meeting
// should be failed or re-run belongs to the pipeline, not the tracker.
package watchdog

import (
	"context"
	"log"
	"time"

	"github.com/Activ8-AI/fathom-video-crm-status-sync/internal/domain"
)

// Store defines the interface for listing stale in-progress meetings.
type Store interface {
	ListStaleInProgress(ctx context.Context, olderThan time.Time, maxResults int) ([]domain.StatusRecord, error)
}

// MetricsSink receives the stale-meeting count each cycle.
type MetricsSink interface {
	StaleInProgressUpdate(count int)
}

// Config holds watchdog configuration.
type Config struct {
	// Interval is how often the watchdog scans.
	// Default: 5 minutes.
	Interval time.Duration

	// Threshold is the age after which an in_progress meeting counts as stale.
	// Default: 30 minutes.
	Threshold time.Duration

	// BatchSize is the maximum number of stale meetings listed per cycle.
	// Default: 100.
	BatchSize int
}

// DefaultConfig returns the default watchdog configuration.
func DefaultConfig() Config {
	return Config{
		Interval:  5 * time.Minute,
		Threshold: 30 * time.Minute,
		BatchSize: 100,
	}
}

// Watchdog scans for stale in-progress meetings.
type Watchdog struct {
	config  Config
	store   Store
	metrics MetricsSink // optional, nil = disabled
	clock   func() time.Time
}

// New creates a new Watchdog.
func New(config Config, store Store) *Watchdog {
	return &Watchdog{
		config: config,
		store:  store,
		clock:  time.Now,
	}
}

// WithMetrics attaches a metrics sink to the watchdog.
func (w *Watchdog) WithMetrics(sink MetricsSink) *Watchdog {
	w.metrics = sink
	return w
}

// Run starts the scan loop. It blocks until ctx is cancelled.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	log.Printf("watchdog: started (interval=%s, threshold=%s, batch=%d)",
		w.config.Interval, w.config.Threshold, w.config.BatchSize)

	// Run immediately on startup, then on ticker
	w.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("watchdog: stopped")
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// runCycle executes one scan.
func (w *Watchdog) runCycle(ctx context.Context) {
	now := w.clock().UTC()
	threshold := now.Add(-w.config.Threshold)

	stale, err := w.store.ListStaleInProgress(ctx, threshold, w.config.BatchSize)
	if err != nil {
		// Store error: log and abort cycle. Will retry next interval.
		log.Printf("watchdog: failed to list stale meetings: %v", err)
		return
	}

	if w.metrics != nil {
		w.metrics.StaleInProgressUpdate(len(stale))
	}

	if len(stale) == 0 {
		// Nothing stuck. Silent success.
		return
	}

	log.Printf("watchdog: %d meetings stuck in_progress past %s", len(stale), w.config.Threshold)
	for _, rec := range stale {
		log.Printf("watchdog: meeting=%s last_step=%q stuck since %s (age=%s)",
			rec.MeetingID, rec.LastStep, rec.UpdatedAt.Format(time.RFC3339),
			now.Sub(rec.UpdatedAt).Round(time.Second))
	}
}
