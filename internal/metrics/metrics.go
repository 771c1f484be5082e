// Package metrics defines Prometheus metrics for fleetwatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fleetwatch"

// HTTP metrics.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HealthzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "healthz_up",
		Help:      "1 when the last liveness probe succeeded, 0 otherwise.",
	})

	ReadyzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "readyz_up",
		Help:      "1 when the last readiness probe succeeded, 0 otherwise.",
	})
)

// Ingestion metrics.
var (
	IngestMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_messages_total",
		Help:      "Total number of telemetry messages consumed.",
	})

	IngestRowsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_rows_written_total",
		Help:      "Total number of telemetry rows written.",
	})

	IngestInvalidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_invalid_total",
		Help:      "Total number of telemetry messages dropped as malformed.",
	})

	IngestErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_errors_total",
		Help:      "Total number of ingestion write errors.",
	})

	IngestFlushDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ingest_flush_duration_seconds",
		Help:      "Duration of telemetry batch flushes in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Evaluation metrics.
var (
	EvalPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "eval_pass_duration_seconds",
		Help:      "Duration of full evaluation passes in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	EvalPassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eval_passes_total",
		Help:      "Total number of evaluation passes.",
	})

	EvalWakeupsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eval_wakeups_total",
		Help:      "Total number of passes triggered by a notify wakeup rather than the poll tick.",
	})

	EvalTenantErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eval_tenant_errors_total",
		Help:      "Total number of tenant evaluation failures.",
	})

	EvalDeviceErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "eval_device_errors_total",
		Help:      "Total number of device evaluation failures.",
	})
)

// Alert metrics.
var (
	AlertsOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_opened_total",
		Help:      "Total number of alerts opened, by type.",
	}, []string{"alert_type"})

	AlertsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_closed_total",
		Help:      "Total number of alerts auto-closed, by type.",
	}, []string{"alert_type"})

	AlertsSilencedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_silenced_total",
		Help:      "Total number of alert detections suppressed by an active silence.",
	})

	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_sent_total",
		Help:      "Total number of alert notifications sent.",
	})

	NotificationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Total number of notification send failures.",
	})
)

// Listener metrics.
var (
	ListenerReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listener_reconnects_total",
		Help:      "Total number of notification listener reconnect attempts.",
	})

	ListenerNotificationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "listener_notifications_total",
		Help:      "Total number of database notifications received.",
	})
)
