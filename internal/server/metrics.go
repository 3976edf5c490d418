package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// labelHandler partitions HTTP metrics by logical endpoint name instead of
// raw URL path.
const labelHandler = "handler"

// serverMetrics groups the Prometheus instruments the HTTP server owns. New
// creates one per Server against an injectable registry, which keeps parallel
// tests from tripping over duplicate registrations in the global default.
type serverMetrics struct {
	// Completed /api/chat turns by directive branch ("need_location",
	// "smalltalk", "recommendation") and outcome ("ok", "capability_error",
	// "error").
	turnsTotal *prometheus.CounterVec

	// Wall-clock /api/chat turn duration, request receipt to reply.
	turnDurationSeconds *prometheus.HistogramVec

	// Live sessions in the in-memory registry.
	activeSessions prometheus.Gauge

	// All HTTP requests by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// HTTP request latency by method and handler.
	httpDurationSeconds *prometheus.HistogramVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localwhisper",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total number of /api/chat turns completed, partitioned by directive branch and outcome.",
		}, []string{"branch", "outcome"}),

		turnDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "localwhisper",
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "Wall-clock duration of /api/chat turns from receipt to reply completion.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"branch"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "localwhisper",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of live sessions in the in-memory registry.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "localwhisper",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "localwhisper",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}
