package model

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	modelSegmentsCached = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "uncover_model_segments_cached",
		Help: "Number of segments held in the model cache",
	})

	modelStateDecodeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "uncover_model_state_decode_failures_total",
		Help: "Total number of model state blobs that could not be decoded",
	})
)
