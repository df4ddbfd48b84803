package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cutout_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Background removal metrics
	removalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_removal_requests_total",
			Help: "Total number of background removal requests",
		},
		[]string{"type", "status"}, // type: image, batch, pdf, websocket
	)

	removalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cutout_removal_duration_seconds",
			Help:    "Background removal duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25, 60},
		},
		[]string{"type"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cutout_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"stage"}, // decode, preprocess, inference, postprocess, encode
	)

	batchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_batch_items_total",
			Help: "Batch items by outcome",
		},
		[]string{"result"}, // succeeded, failed, skipped
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_cache_lookups_total",
			Help: "Result cache lookups",
		},
		[]string{"result"}, // hit, miss, error
	)

	// File upload metrics
	uploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cutout_upload_size_bytes",
			Help:    "Size of uploaded files in bytes",
			Buckets: []float64{1024, 10 * 1024, 100 * 1024, 1024 * 1024, 5 * 1024 * 1024, 10 * 1024 * 1024, 50 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cutout_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cutout_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
