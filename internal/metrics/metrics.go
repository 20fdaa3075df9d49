package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supportchat_ws_connections_active",
			Help: "Currently open WebSocket connections",
		},
	)

	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_ws_connections_rejected_total",
			Help: "Connections rejected at admission",
		},
		[]string{"reason"}, // "origin", "identity", "token"
	)

	ConnectionsTerminated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_ws_connections_terminated_total",
			Help: "Connections forcibly terminated",
		},
		[]string{"reason"}, // "heartbeat", "replaced"
	)

	// Protocol metrics
	MessagesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_messages_total",
			Help: "Chat messages processed",
		},
		[]string{"sender"},
	)

	FramesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_frames_rejected_total",
			Help: "Inbound frames rejected before handling",
		},
		[]string{"reason"}, // "oversized", "malformed", "schema", "rate_limited"
	)

	// Persistence metrics
	StoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_store_failures_total",
			Help: "Durable store operation failures",
		},
		[]string{"store", "op"}, // op: "save" or "query"
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supportchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)
