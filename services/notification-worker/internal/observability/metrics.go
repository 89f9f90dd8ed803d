package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bba_notification_worker",
			Name:      "messages_received_total",
			Help:      "Kafka messages pulled by the worker",
		},
		[]string{"topic"},
	)

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bba_notification_worker",
			Name:      "processed_total",
			Help:      "Order events whose emails were all handed to the mail provider",
		},
		[]string{"event_type"},
	)

	EmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bba_notification_worker",
			Name:      "emails_total",
			Help:      "Email deliveries by recipient role and result",
		},
		[]string{"role", "result"},
	)

	DLQPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bba_notification_worker",
			Name:      "dlq_total",
			Help:      "Events sent to DLQ by reason",
		},
		[]string{"reason"},
	)

	ProcessLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bba_notification_worker",
			Name:      "process_duration_seconds",
			Help:      "End-to-end processing latency per message",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	InflightJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bba_notification_worker",
			Name:      "inflight_jobs",
			Help:      "Number of events currently being processed (semaphore depth)",
		},
	)
)
