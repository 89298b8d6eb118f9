package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Detection outcomes reuse the error types of the JSON responses, so a 422
// with error_type "no_barcode" shows up as outcome="no_barcode".
const outcomeOK = "ok"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_http_requests_total",
			Help: "HTTP requests by method, path and status code",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Includes multipart parsing and response encoding; overlays add a PNG
	// encode on top of the pipeline.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barscan_http_request_duration_seconds",
			Help:    "Wall time from request start to last byte written",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_detections_total",
			Help: "Detection requests by source (image, pdf, websocket) and outcome (ok or the response error type)",
		},
		[]string{"source", "outcome"},
	)

	// A 800x600 photo runs the nine stages in tens of milliseconds; PDFs
	// multiply that by the embedded image count.
	detectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barscan_detection_duration_seconds",
			Help:    "Pipeline time per detection request, excluding upload parsing",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 13),
		},
		[]string{"source"},
	)

	symbolsPerDetection = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barscan_symbols_per_detection",
			Help:    "Decoded symbols per successful detection request; 0 means a region was found but nothing decoded",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 25},
		},
		[]string{"source"},
	)

	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_rate_limit_rejections_total",
			Help: "Requests rejected by the per-client limiter, by window (minute, hour) or quota (requests, data)",
		},
		[]string{"limit"},
	)

	uploadSizeBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "barscan_upload_size_bytes",
			Help:    "Size of uploaded images and PDFs in bytes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8),
		},
		[]string{"field"},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "barscan_websocket_active_connections",
			Help: "Open /ws/detect connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "barscan_websocket_messages_total",
			Help: "WebSocket messages; sent counts stage events as well as results",
		},
		[]string{"direction"},
	)
)

// observeDetection records a finished detection request. elapsed is zero
// when the request failed before the pipeline ran.
func observeDetection(source, outcome string, elapsed time.Duration, symbols int) {
	detectionsTotal.WithLabelValues(source, outcome).Inc()
	if elapsed > 0 {
		detectionDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	}
	if outcome == outcomeOK {
		symbolsPerDetection.WithLabelValues(source).Observe(float64(symbols))
	}
}
