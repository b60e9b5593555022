// Package metrics defines the Prometheus collectors for the dispatch core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BroadcastsTotal counts successful broadcasts by driver.
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcasts_total",
			Help: "Total broadcasts delivered, by driver",
		},
		[]string{"driver"},
	)

	// BroadcastFailuresTotal counts failed delivery attempts by driver.
	BroadcastFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_failures_total",
			Help: "Total failed delivery attempts, by driver",
		},
		[]string{"driver"},
	)

	// QueuedJobsTotal counts delivery jobs handed to the queue.
	QueuedJobsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_queued_jobs_total",
			Help: "Total delivery jobs enqueued",
		},
	)

	// DuplicateDropsTotal counts unique broadcasts dropped because the
	// deduplication lock was already held.
	DuplicateDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_duplicate_drops_total",
			Help: "Total unique broadcasts silently dropped as duplicates",
		},
	)

	// QueueDepth tracks the number of jobs waiting in the in-memory queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_queue_depth",
			Help: "Jobs currently waiting in the delivery queue",
		},
	)

	// QueueRetriesTotal counts delivery retries performed by the queue workers.
	QueueRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_queue_retries_total",
			Help: "Total delivery retries",
		},
	)

	// QueueFailedJobsTotal counts jobs that exhausted their retries.
	QueueFailedJobsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_queue_failed_jobs_total",
			Help: "Total delivery jobs that permanently failed",
		},
	)

	// PollRequestsTotal counts poll transport requests.
	PollRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_poll_requests_total",
			Help: "Total poll requests served",
		},
	)

	// PollEventsReturned observes how many events each poll response carried.
	PollEventsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_poll_events_returned",
			Help:    "Events returned per poll response",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// AuthDecisionsTotal counts channel authorization outcomes.
	AuthDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_auth_decisions_total",
			Help: "Channel authorization outcomes",
		},
		[]string{"decision"},
	)

	// PresenceTouchesTotal counts presence membership touches.
	PresenceTouchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_presence_touches_total",
			Help: "Total presence membership touches",
		},
	)

	// CircuitBreakerState tracks the publish circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "broadcast_circuit_breaker_state",
			Help: "Publish circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)
