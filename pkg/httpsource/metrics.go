package httpsource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uncover_source_requests_total",
		Help: "Total page requests sent to the HTTP source by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "uncover_source_request_duration_seconds",
		Help:    "Page request duration in seconds, retries included",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "uncover_source_errors_total",
		Help: "Total failed page requests by error class",
	}, []string{"class"})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uncover_source_retries_total",
		Help: "Total retry attempts against the HTTP source",
	})
)
