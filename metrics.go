package vecgate

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus;
// internal/telemetry ships such an implementation.
type MetricsCollector interface {
	// RecordRequest is called once per Execute call.
	// queries is the batch size, err is nil if successful.
	RecordRequest(queries, k int, duration time.Duration, err error)

	// RecordValidationFailure is called for every rejected batch.
	RecordValidationFailure(reason error)

	// RecordSearch is called after each engine search.
	RecordSearch(queries, k int, duration time.Duration, err error)

	// RecordCache is called on each result cache lookup.
	RecordCache(hit bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRequest(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordValidationFailure(error)                {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordCache(bool)                             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	RequestCount      atomic.Int64
	RequestErrors     atomic.Int64
	RequestTotalNanos atomic.Int64
	QueryCount        atomic.Int64
	ValidationErrors  atomic.Int64
	SearchCount       atomic.Int64
	SearchErrors      atomic.Int64
	SearchTotalNanos  atomic.Int64
	CacheHits         atomic.Int64
	CacheMisses       atomic.Int64
}

// RecordRequest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRequest(queries, k int, duration time.Duration, err error) {
	b.RequestCount.Add(1)
	b.QueryCount.Add(int64(queries))
	b.RequestTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RequestErrors.Add(1)
	}
}

// RecordValidationFailure implements MetricsCollector.
func (b *BasicMetricsCollector) RecordValidationFailure(error) {
	b.ValidationErrors.Add(1)
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(queries, k int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordCache implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCache(hit bool) {
	if hit {
		b.CacheHits.Add(1)
	} else {
		b.CacheMisses.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		RequestCount:     b.RequestCount.Load(),
		RequestErrors:    b.RequestErrors.Load(),
		RequestAvgNanos:  avg(b.RequestTotalNanos.Load(), b.RequestCount.Load()),
		QueryCount:       b.QueryCount.Load(),
		ValidationErrors: b.ValidationErrors.Load(),
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchAvgNanos:   avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		CacheHits:        b.CacheHits.Load(),
		CacheMisses:      b.CacheMisses.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RequestCount     int64
	RequestErrors    int64
	RequestAvgNanos  int64
	QueryCount       int64
	ValidationErrors int64
	SearchCount      int64
	SearchErrors     int64
	SearchAvgNanos   int64
	CacheHits        int64
	CacheMisses      int64
}
