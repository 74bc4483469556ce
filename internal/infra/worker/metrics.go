package worker

import (
	"aidjobs-crawler/internal/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics provides Prometheus metrics for the crawl worker process.
// It embeds the standard ConfigMetrics for configuration monitoring and adds
// scheduler-specific metrics for tick execution tracking.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp: Unix timestamp of last configuration load
//   - worker_config_validation_errors_total: Total validation errors by field
//   - worker_config_fallbacks_total: Total fallback operations by field
//   - worker_config_fallback_active: 1 if any fallback active, 0 otherwise
//
// Scheduler metrics:
//   - worker_scheduler_ticks_total: Total scheduler ticks by status (success/failure)
//   - worker_scheduler_tick_duration_seconds: Duration histogram of tick execution
//   - worker_scheduler_sources_queued_total: Total due sources dispatched across ticks
//   - worker_scheduler_last_success_timestamp: Unix timestamp of last successful tick
//
// Example usage:
//
//	metrics := NewWorkerMetrics()
//	metrics.MustRegister()
//
//	// Record configuration load
//	metrics.RecordLoadTimestamp()
//
//	// Record one scheduler tick
//	start := time.Now()
//	defer func() {
//	    metrics.RecordJobDuration(time.Since(start).Seconds())
//	    metrics.RecordJobRun("success")
//	    metrics.RecordFeedsProcessed(queued)
//	    metrics.RecordLastSuccess()
//	}()
type WorkerMetrics struct {
	// Embedded configuration metrics
	*config.ConfigMetrics

	// SchedulerTicksTotal counts scheduler ticks.
	// Type: Counter
	// Labels: status (success, failure)
	// Usage: Increment after each tick based on success/failure
	SchedulerTicksTotal *prometheus.CounterVec

	// SchedulerTickDurationSeconds measures the duration of one tick,
	// including every crawl the tick dispatched.
	// Type: Histogram
	// Labels: none
	// Buckets: 1s, 5s, 30s, 1m, 5m, 15m, 30m (optimized for typical crawl durations)
	SchedulerTickDurationSeconds prometheus.Histogram

	// SchedulerSourcesQueuedTotal counts due sources dispatched to crawls.
	// Type: Counter
	// Labels: none
	// Usage: Add the tick's queued-source count after each successful tick
	SchedulerSourcesQueuedTotal prometheus.Counter

	// SchedulerLastSuccessTimestamp records the Unix timestamp of the last
	// successful tick, the input to staleness alerting.
	// Type: Gauge
	// Labels: none
	SchedulerLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates a new WorkerMetrics instance with all metrics initialized.
// Metrics are created but not registered with Prometheus. Call MustRegister() to register.
//
// Returns:
//   - *WorkerMetrics: Initialized metrics ready for registration
//
// Example:
//
//	metrics := NewWorkerMetrics()
//	metrics.MustRegister()  // Register with Prometheus
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		SchedulerTicksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_scheduler_ticks_total",
			Help: "Total number of scheduler ticks by status (success/failure)",
		}, []string{"status"}),

		SchedulerTickDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_scheduler_tick_duration_seconds",
			Help:    "Duration of scheduler tick execution in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800}, // 1s, 5s, 30s, 1m, 5m, 15m, 30m
		}),

		SchedulerSourcesQueuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_scheduler_sources_queued_total",
			Help: "Total number of due sources dispatched across all scheduler ticks",
		}),

		SchedulerLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_scheduler_last_success_timestamp",
			Help: "Unix timestamp of the last successful scheduler tick",
		}),
	}
}

// MustRegister is a no-op method for API compatibility.
// Metrics are automatically registered via promauto when created in NewWorkerMetrics.
//
// This method exists to maintain consistency with the expected metrics initialization pattern:
//
//	metrics := NewWorkerMetrics()
//	metrics.MustRegister()
//
// Even though registration happens automatically, this explicit call makes the
// initialization intent clear and maintains compatibility with future changes.
func (m *WorkerMetrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto
}

// RecordJobRun increments the tick counter for the given status.
// Status should be either "success" or "failure".
//
// Parameters:
//   - status: Tick execution status ("success" or "failure")
//
// Example:
//
//	if _, err := orch.RunDueOnce(ctx); err != nil {
//	    metrics.RecordJobRun("failure")
//	} else {
//	    metrics.RecordJobRun("success")
//	}
func (m *WorkerMetrics) RecordJobRun(status string) {
	m.SchedulerTicksTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration observes the duration of one scheduler tick.
// Duration should be in seconds.
//
// Parameters:
//   - seconds: Tick execution duration in seconds
//
// Example:
//
//	start := time.Now()
//	// ... run tick ...
//	metrics.RecordJobDuration(time.Since(start).Seconds())
func (m *WorkerMetrics) RecordJobDuration(seconds float64) {
	m.SchedulerTickDurationSeconds.Observe(seconds)
}

// RecordFeedsProcessed adds a tick's queued-source count to the total.
//
// Parameters:
//   - count: Number of due sources the tick dispatched
//
// Example:
//
//	result, err := orch.RunDueOnce(ctx)
//	if err == nil {
//	    metrics.RecordFeedsProcessed(result.Queued)
//	}
func (m *WorkerMetrics) RecordFeedsProcessed(count int) {
	m.SchedulerSourcesQueuedTotal.Add(float64(count))
}

// RecordLastSuccess records the current time as the last successful tick.
//
// Example:
//
//	if _, err := orch.RunDueOnce(ctx); err == nil {
//	    metrics.RecordLastSuccess()
//	}
func (m *WorkerMetrics) RecordLastSuccess() {
	m.SchedulerLastSuccessTimestamp.SetToCurrentTime()
}
