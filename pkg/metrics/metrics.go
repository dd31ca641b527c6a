package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundraiser_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks sessions that have not been logged out.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fundraiser_active_sessions",
			Help: "Number of active user sessions",
		},
	)

	// AuditEntriesWritten counts persisted audit rows by action.
	AuditEntriesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundraiser_audit_entries_total",
			Help: "Total number of audit trail rows written",
		},
		[]string{"action"},
	)

	// GeoLookups counts IP geolocation lookups by result (success|failure|skipped|rejected).
	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundraiser_geo_lookups_total",
			Help: "Total number of IP geolocation lookups",
		},
		[]string{"result"},
	)

	// NotificationsDropped counts admin alerts discarded because the queue was full or closed.
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fundraiser_notifications_dropped_total",
			Help: "Admin notifications dropped before delivery",
		},
	)

	// PermissionChecks counts grant checks by grant and outcome (allowed|denied).
	PermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundraiser_permission_checks_total",
			Help: "Total number of permission checks",
		},
		[]string{"grant", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fundraiser_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
