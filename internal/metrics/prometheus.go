package metrics

import (
	"log"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Read-path metrics
	readsTotal            *prometheus.CounterVec
	cacheErrorsTotal      *prometheus.CounterVec
	cacheRepopulatesTotal *prometheus.CounterVec
	cacheSkippedTotal     prometheus.Counter

	// Write-path metrics
	storeRetriesTotal *prometheus.CounterVec
	writesTotal       *prometheus.CounterVec
	writeDuration     prometheus.Histogram
	cacheWritesTotal  *prometheus.CounterVec

	// Watchdog metrics
	staleInProgress prometheus.Gauge
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initReadMetrics(reg)
	s.initWriteMetrics(reg)
	s.initWatchdogMetrics(reg)
	return s
}

func (s *PrometheusSink) initReadMetrics(reg prometheus.Registerer) {
	s.readsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statussync_reads_total",
		Help: "Total status reads, labelled by the layer that answered.",
	}, []string{"source"})

	s.cacheErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statussync_cache_errors_total",
		Help: "Total cache operation errors (always non-fatal).",
	}, []string{"op"})

	s.cacheRepopulatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statussync_cache_repopulates_total",
		Help: "Total cache repopulations after a store fallback read.",
	}, []string{"ok"})

	s.cacheSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "statussync_cache_skipped_total",
		Help: "Total reads that bypassed the cache because its breaker was open.",
	})

	s.register(reg, s.readsTotal, "statussync_reads_total")
	s.register(reg, s.cacheErrorsTotal, "statussync_cache_errors_total")
	s.register(reg, s.cacheRepopulatesTotal, "statussync_cache_repopulates_total")
	s.register(reg, s.cacheSkippedTotal, "statussync_cache_skipped_total")
}

func (s *PrometheusSink) initWriteMetrics(reg prometheus.Registerer) {
	s.storeRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statussync_store_retries_total",
		Help: "Total durable upsert retries (excludes first attempt).",
	}, []string{"attempt"})

	s.writesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statussync_writes_total",
		Help: "Total status writes by final outcome.",
	}, []string{"outcome"})

	s.writeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "statussync_write_duration_seconds",
		Help:    "Duration of the full write path including retries.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	s.cacheWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statussync_cache_writes_total",
		Help: "Total best-effort cache writes after durable commit.",
	}, []string{"ok"})

	s.register(reg, s.storeRetriesTotal, "statussync_store_retries_total")
	s.register(reg, s.writesTotal, "statussync_writes_total")
	s.register(reg, s.writeDuration, "statussync_write_duration_seconds")
	s.register(reg, s.cacheWritesTotal, "statussync_cache_writes_total")
}

func (s *PrometheusSink) initWatchdogMetrics(reg prometheus.Registerer) {
	s.staleInProgress = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "statussync_stale_in_progress",
		Help: "Meetings stuck in_progress past the watchdog threshold.",
	})

	s.register(reg, s.staleInProgress, "statussync_stale_in_progress")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Read-path metrics implementation

func (s *PrometheusSink) ReadOutcome(source string) {
	s.readsTotal.WithLabelValues(source).Inc()
}

func (s *PrometheusSink) CacheError(op string) {
	s.cacheErrorsTotal.WithLabelValues(op).Inc()
}

func (s *PrometheusSink) CacheRepopulated(ok bool) {
	s.cacheRepopulatesTotal.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

func (s *PrometheusSink) CacheSkipped() {
	s.cacheSkippedTotal.Inc()
}

// Write-path metrics implementation

func (s *PrometheusSink) StoreRetry(attempt int) {
	s.storeRetriesTotal.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

func (s *PrometheusSink) WriteOutcome(outcome string, duration time.Duration) {
	s.writesTotal.WithLabelValues(outcome).Inc()
	s.writeDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) CacheWriteAfterCommit(ok bool) {
	s.cacheWritesTotal.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

// Watchdog metrics implementation

func (s *PrometheusSink) StaleInProgressUpdate(count int) {
	s.staleInProgress.Set(float64(count))
}
