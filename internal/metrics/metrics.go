package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "petchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Чат
	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petchat_conversations_created_total",
			Help: "Total conversations created",
		},
	)

	ConversationsRetired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petchat_conversations_retired_total",
			Help: "Total conversations retired by adoption or moderation",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petchat_messages_sent_total",
			Help: "Total messages persisted and broadcast",
		},
	)

	SendFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petchat_send_failures_total",
			Help: "Total rejected sends",
		},
		[]string{"reason"},
	)

	Joins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petchat_joins_total",
			Help: "Total join attempts",
		},
		[]string{"result"}, // "ok" или "failed"
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "petchat_active_connections",
			Help: "Currently open realtime connections",
		},
	)

	DroppedPeers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "petchat_dropped_peers_total",
			Help: "Connections dropped because their send queue was full",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "petchat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"scope"},
	)
)
