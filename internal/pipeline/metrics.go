package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barscan_stage_duration_seconds",
			Help:    "Duration of a single pipeline stage in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"stage"},
	)

	imagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_images_processed_total",
			Help: "Total number of images run through the pipeline",
		},
		[]string{"outcome"}, // outcome: ok, no_region, no_roi, canceled, error
	)

	symbolsDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_symbols_decoded_total",
			Help: "Total number of decoded symbols",
		},
		[]string{"type"},
	)

	skewAngle = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "barscan_skew_correction_degrees",
			Help:    "Applied skew correction angle in degrees",
			Buckets: prometheus.LinearBuckets(-45, 7.5, 13),
		},
	)
)
