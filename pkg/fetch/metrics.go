package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for fetch coordination.
var (
	fetchRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uncover_fetch_requests_total",
		Help: "Total number of pages reserved and queued for fetching",
	})

	fetchDeduplicatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uncover_fetch_deduplicated_total",
		Help: "Total number of page requests suppressed because the page was already covered",
	})

	fetchDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uncover_fetch_dispatched_total",
		Help: "Total number of requests handed to the primary source by lane",
	}, []string{"lane"})

	fetchDeferredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uncover_fetch_deferred_total",
		Help: "Total number of deferred dispatch retries scheduled because no lane was free",
	})

	fetchEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uncover_fetch_evicted_total",
		Help: "Total number of queued requests evicted because they left the visible area",
	})

	fetchStaleResponsesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uncover_fetch_stale_responses_total",
		Help: "Total number of responses dropped because they belong to a discarded generation",
	})

	fetchResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uncover_fetch_results_total",
		Help: "Total number of fetch completions by outcome",
	}, []string{"outcome"}) // "available", "unavailable", "panic"

	fetchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uncover_fetch_queue_depth",
		Help: "Number of requests waiting for a lane (last updated coordinator)",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "uncover_fetch_duration_seconds",
		Help:    "Duration of primary source fetch calls",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
)
