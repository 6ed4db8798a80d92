// Package metrics exposes the Prometheus metrics of uncover.
// All metrics are defined in their respective packages (fetch, model,
// pagecache, httpsource, ratelimit) and registered via promauto on the
// default registry; this package only serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the Prometheus registry all uncover metrics are registered on.
var Registry = prometheus.DefaultRegisterer

// Names lists every metric uncover registers.
var Names = []string{
	// pkg/fetch
	"uncover_fetch_requests_total",
	"uncover_fetch_deduplicated_total",
	"uncover_fetch_dispatched_total",
	"uncover_fetch_deferred_total",
	"uncover_fetch_evicted_total",
	"uncover_fetch_stale_responses_total",
	"uncover_fetch_results_total",
	"uncover_fetch_queue_depth",
	"uncover_fetch_duration_seconds",

	// pkg/model
	"uncover_model_segments_cached",
	"uncover_model_state_decode_failures_total",

	// pkg/pagecache
	"uncover_pagecache_hits_total",
	"uncover_pagecache_misses_total",
	"uncover_pagecache_shared_fetches_total",
	"uncover_pagecache_errors_total",

	// pkg/httpsource
	"uncover_source_requests_total",
	"uncover_source_request_duration_seconds",
	"uncover_source_errors_total",
	"uncover_source_retries_total",

	// pkg/ratelimit
	"uncover_ratelimit_errors_remaining",
	"uncover_ratelimit_blocks_total",
	"uncover_ratelimit_throttles_total",
}

// Handler returns the /metrics handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Fetch Metrics (pkg/fetch):
//   - uncover_fetch_requests_total (Counter): page requests accepted by the coordinator
//   - uncover_fetch_deduplicated_total (Counter): requests dropped as already covered
//   - uncover_fetch_dispatched_total{lane} (Counter): requests handed to a lane
//   - uncover_fetch_deferred_total (Counter): dispatches postponed because all lanes were busy
//   - uncover_fetch_evicted_total (Counter): queued requests evicted by the visible area
//   - uncover_fetch_stale_responses_total (Counter): responses from an older generation
//   - uncover_fetch_results_total{outcome} (Counter): completed fetches by outcome
//   - uncover_fetch_queue_depth (Gauge): queued requests
//   - uncover_fetch_duration_seconds (Histogram): source fetch duration
//
// Model Metrics (pkg/model):
//   - uncover_model_segments_cached (Gauge): resolved pages held by models
//   - uncover_model_state_decode_failures_total (Counter): rejected state blobs
//
// Page Cache Metrics (pkg/pagecache):
//   - uncover_pagecache_hits_total, uncover_pagecache_misses_total (Counter)
//   - uncover_pagecache_shared_fetches_total (Counter): misses served by a concurrent fetch
//   - uncover_pagecache_errors_total{operation} (Counter)
//
// Source Metrics (pkg/httpsource):
//   - uncover_source_requests_total{status} (Counter)
//   - uncover_source_request_duration_seconds (Histogram): retries included
//   - uncover_source_errors_total{class} (Counter): client, server, rate_limit, network
//   - uncover_source_retries_total (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - uncover_ratelimit_errors_remaining (Gauge)
//   - uncover_ratelimit_blocks_total (Counter): requests refused on a critical budget
//   - uncover_ratelimit_throttles_total (Counter): requests delayed on a low budget
//
// Example Prometheus Queries:
//
//   # Page Cache Hit Rate
//   sum(rate(uncover_pagecache_hits_total[5m])) /
//   (sum(rate(uncover_pagecache_hits_total[5m])) + sum(rate(uncover_pagecache_misses_total[5m])))
//
//   # Error Budget Status
//   uncover_ratelimit_errors_remaining < 20
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(uncover_fetch_duration_seconds_bucket[5m]))
