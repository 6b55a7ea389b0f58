// Package metrics provides Prometheus instrumentation for the tickfold
// resampling engine and its segment store.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible metrics collection
//   - Pre-defined metrics for planning, folding and assembly
//   - Segment store size and compression tracking
//   - Automatic metric registration via promauto
//
// # Basic Usage
//
//	// Record a completed invocation
//	metrics.ResamplesTotal.WithLabelValues("ok").Inc()
//
//	// Track fold latency
//	timer := metrics.NewTimer("fold")
//	fold(segments)
//	metrics.ResampleDuration.Observe(float64(timer.Stop().Nanoseconds()))
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., rows folded)
// Gauge: Values that can go up or down (e.g., active resamples)
// Histogram: Distribution of values (e.g., invocation latency)
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResamplesTotal tracks completed resample invocations.
	// Labels: status (ok/error)
	//
	// Example:
	//	metrics.ResamplesTotal.WithLabelValues("ok").Inc()
	ResamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickfold_resamples_total",
			Help: "Total number of resample invocations",
		},
		[]string{"status"},
	)

	// ResampleDuration tracks the distribution of invocation latencies in
	// nanoseconds. Buckets are tuned for in-memory columnar workloads.
	ResampleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "tickfold_resample_duration_nanoseconds",
			Help: "Resample invocation latency in nanoseconds",
			Buckets: []float64{
				10000,  // 10μs - trivial plans
				100000, // 100μs - small series
				1e6,    // 1ms - standard resamples
				1e7,    // 10ms - wide buckets, many columns
				1e8,    // 100ms - large multi-segment series
				1e9,    // 1s - full-history resamples
				1e10,   // 10s - batch-scale work
			},
		},
	)

	// SegmentsFolded tracks segments consumed by the aggregator
	SegmentsFolded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickfold_segments_folded_total",
			Help: "Total number of segments folded",
		},
	)

	// RowsFolded tracks rows assigned to buckets
	RowsFolded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickfold_rows_folded_total",
			Help: "Total number of rows assigned to buckets",
		},
	)

	// BucketsPlanned tracks buckets produced by the planner
	BucketsPlanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickfold_buckets_planned_total",
			Help: "Total number of buckets planned",
		},
	)

	// BucketsEmitted tracks non-empty buckets that reached the output table
	BucketsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickfold_buckets_emitted_total",
			Help: "Total number of non-empty buckets emitted",
		},
	)

	// BucketsSuppressed tracks planned buckets dropped for having no rows
	BucketsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickfold_buckets_suppressed_total",
			Help: "Total number of empty buckets suppressed",
		},
	)

	// ActiveResamples tracks invocations currently in flight
	ActiveResamples = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tickfold_active_resamples",
			Help: "Number of resample invocations in flight",
		},
	)

	// StoreSegments tracks segments held per symbol
	StoreSegments = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tickfold_store_segments",
			Help: "Number of segments held in the store",
		},
		[]string{"symbol"},
	)

	// StoreCompressedBytes tracks compressed payload size per symbol
	StoreCompressedBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tickfold_store_compressed_bytes",
			Help: "Compressed segment payload bytes held in the store",
		},
		[]string{"symbol"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
//
// Example:
//
//	timer := metrics.NewTimer("resample")
//	table, err := engine.Resample(ctx, src, req)
//	duration := timer.Stop()
//	logger.Info("resampled", zap.Duration("duration", duration))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
