package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_client_frames_total",
			Help: "Websocket frames handled by the messaging client",
		},
		[]string{"direction", "kind"},
	)

	FramesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_client_frames_dropped_total",
			Help: "Frames discarded by the messaging client",
		},
		[]string{"reason"},
	)

	ReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hms_client_reconnects_total",
			Help: "Reconnect attempts scheduled after a transport close",
		},
	)

	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hms_client_connection_state",
			Help: "Current connection state (0 disconnected, 1 connecting, 2 authenticating, 3 open, 4 closing)",
		},
	)

	StoreSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hms_client_store_size",
			Help: "Entries held by the client-side message store",
		},
		[]string{"collection"},
	)

	SinkErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hms_client_sink_errors_total",
			Help: "Event sink publish failures",
		},
		[]string{"sink"},
	)
)
