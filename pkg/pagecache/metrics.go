package pagecache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uncover_pagecache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uncover_pagecache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	cacheSharedFetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uncover_pagecache_shared_fetches_total",
			Help: "Total number of misses answered by a concurrent fetch of the same page",
		},
	)

	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uncover_pagecache_errors_total",
			Help: "Total number of page cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "purge", "encode", "decode"
	)
)
