// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChangeEventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changefeed_events_received_total",
			Help: "Total number of change events received per source",
		},
		[]string{"source"},
	)

	ChangeEventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "changefeed_events_rejected_total",
			Help: "Total number of change events dropped before reaching the notifier",
		},
		[]string{"source", "error_code"},
	)

	ChangeEventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_events_skipped_total",
			Help: "Total number of change events that did not qualify for a notification",
		},
		[]string{"reason"},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_notifications_sent_total",
			Help: "Total number of approval emails accepted by the mail transport",
		},
		[]string{"provider"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "approval_notifications_failed_total",
			Help: "Total number of approval emails the mail transport rejected",
		},
		[]string{"provider", "error_code"},
	)

	NotificationDispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "approval_notification_dispatch_seconds",
			Help:    "Duration of a single mail dispatch attempt in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of workflow jobs currently being handled",
		},
		[]string{"task_type"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of workflow job handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)
)
