package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) ReadOutcome(source string)                          {}
func (n *NoopSink) CacheError(op string)                               {}
func (n *NoopSink) CacheRepopulated(ok bool)                           {}
func (n *NoopSink) CacheSkipped()                                      {}
func (n *NoopSink) StoreRetry(attempt int)                             {}
func (n *NoopSink) WriteOutcome(outcome string, duration time.Duration) {}
func (n *NoopSink) CacheWriteAfterCommit(ok bool)                      {}
func (n *NoopSink) StaleInProgressUpdate(count int)                    {}
