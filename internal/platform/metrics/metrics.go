// Package metrics provides Prometheus metrics for the evaluation service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	jobsEnqueued = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "evalapi",
		Name:      "jobs_enqueued_total",
		Help:      "Evaluation jobs accepted into the queue.",
	})

	jobsCompleted = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "evalapi",
		Name:      "jobs_completed_total",
		Help:      "Evaluation jobs completed successfully.",
	})

	jobsFailed = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "evalapi",
		Name:      "jobs_failed_total",
		Help:      "Evaluation jobs that ended in a terminal failure.",
	})

	enqueueErrors = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "evalapi",
		Name:      "enqueue_errors_total",
		Help:      "Enqueue attempts that failed before a job existed.",
	})

	duplicateRequests = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "evalapi",
		Name:      "duplicate_requests_total",
		Help:      "Requests answered from the result store by request ID.",
	})

	rateLimited = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "evalapi",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter, by limiter name.",
	}, []string{"limiter"})

	syncWaitOutcomes = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: "evalapi",
		Name:      "sync_wait_outcomes_total",
		Help:      "Outcomes of the bounded synchronous wait, by outcome.",
	}, []string{"outcome"})

	jobDuration = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: "evalapi",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of job execution.",
		Buckets:   prometheus.DefBuckets,
	})

	queueDepth = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "evalapi",
		Name:      "queue_depth",
		Help:      "Jobs currently buffered in the dispatch channel.",
	})
)

// RecordJobEnqueued increments the enqueued-jobs counter.
func RecordJobEnqueued() { jobsEnqueued.Inc() }

// RecordJobCompleted increments the completed-jobs counter.
func RecordJobCompleted() { jobsCompleted.Inc() }

// RecordJobFailed increments the failed-jobs counter.
func RecordJobFailed() { jobsFailed.Inc() }

// RecordEnqueueError increments the enqueue-error counter.
func RecordEnqueueError() { enqueueErrors.Inc() }

// RecordDuplicateRequest increments the duplicate-request counter.
func RecordDuplicateRequest() { duplicateRequests.Inc() }

// RecordRateLimited increments the rate-limited counter for the named limiter.
func RecordRateLimited(limiter string) { rateLimited.WithLabelValues(limiter).Inc() }

// RecordSyncWaitOutcome increments the bounded-wait outcome counter.
// Outcome is one of "finished", "timed_out", "failed".
func RecordSyncWaitOutcome(outcome string) { syncWaitOutcomes.WithLabelValues(outcome).Inc() }

// ObserveJobDuration records how long a job's execution took.
func ObserveJobDuration(seconds float64) { jobDuration.Observe(seconds) }

// UpdateQueueDepth sets the current dispatch-channel depth.
func UpdateQueueDepth(n int) { queueDepth.Set(float64(n)) }

// Handler returns the HTTP handler serving the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
