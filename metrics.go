package uniquestore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordAdd is called after each Add. inserted reports whether a new
	// unique value was created, err is nil on success.
	RecordAdd(duration time.Duration, inserted bool, err error)

	// RecordRelease is called after each Release. removed reports whether
	// the refcount reached zero and the value left the dictionary.
	RecordRelease(duration time.Duration, removed bool)

	// RecordCompaction is called after each compaction sweep with the
	// number of buffers retired and entries moved.
	RecordCompaction(buffers, moved int, duration time.Duration)

	// RecordReclaim is called after each hold-list trim.
	RecordReclaim(duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration, bool, error)      {}
func (NoopMetricsCollector) RecordRelease(time.Duration, bool)         {}
func (NoopMetricsCollector) RecordCompaction(int, int, time.Duration)  {}
func (NoopMetricsCollector) RecordReclaim(time.Duration)               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AddCount         atomic.Int64
	AddInserted      atomic.Int64
	AddErrors        atomic.Int64
	AddTotalNanos    atomic.Int64
	ReleaseCount     atomic.Int64
	ReleaseRemoved   atomic.Int64
	CompactionCount  atomic.Int64
	CompactionMoved  atomic.Int64
	ReclaimCount     atomic.Int64
}

func (c *BasicMetricsCollector) RecordAdd(duration time.Duration, inserted bool, err error) {
	c.AddCount.Add(1)
	c.AddTotalNanos.Add(int64(duration))
	if inserted {
		c.AddInserted.Add(1)
	}
	if err != nil {
		c.AddErrors.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordRelease(duration time.Duration, removed bool) {
	c.ReleaseCount.Add(1)
	if removed {
		c.ReleaseRemoved.Add(1)
	}
}

func (c *BasicMetricsCollector) RecordCompaction(buffers, moved int, duration time.Duration) {
	c.CompactionCount.Add(1)
	c.CompactionMoved.Add(int64(moved))
}

func (c *BasicMetricsCollector) RecordReclaim(duration time.Duration) {
	c.ReclaimCount.Add(1)
}
