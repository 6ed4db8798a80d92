package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	errorsRemaining = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uncover_ratelimit_errors_remaining",
		Help: "Number of errors remaining in the current error budget window",
	})

	blocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uncover_ratelimit_blocks_total",
		Help: "Total number of requests blocked due to a critical error budget",
	})

	throttlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uncover_ratelimit_throttles_total",
		Help: "Total number of requests throttled due to a low error budget",
	})
)
