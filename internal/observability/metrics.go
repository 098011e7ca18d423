package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "enrollments_total",
		Help:      "Total enrollment attempts by terminal state",
	}, []string{"outcome"}) // linked, no_face, enroll_failed, link_failed

	Matches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "matches_total",
		Help:      "Total match invocations by outcome",
	}, []string{"outcome"}) // matched, no_match, orphaned

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "notifications_total",
		Help:      "Total notification dispatch results",
	}, []string{"result"}) // sent, skipped, failed

	IntegrityErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facegate",
		Name:      "integrity_errors_total",
		Help:      "Cross-store inconsistencies detected",
	}, []string{"kind"}) // dangling_descriptor, orphaned_match, orphaned_record

	RecognizerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "recognizer_op_duration_seconds",
		Help:      "Duration of recognizer gateway operations",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"op"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facegate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facegate",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
