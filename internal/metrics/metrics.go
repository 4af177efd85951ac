package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session protocol metrics
	RequestsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbwc_adapter_requests_issued_total",
			Help: "Requests handed to the connector, by source (queue or default) and entity",
		},
		[]string{"source", "entity"},
	)

	AnswersReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbwc_adapter_answers_received_total",
			Help: "Answers received from the connector, by outcome",
		},
		[]string{"outcome"},
	)

	// Queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qbwc_adapter_queue_depth",
			Help: "Pending requests in the durable queue",
		},
	)

	// Pipeline metrics
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qbwc_adapter_pipeline_duration_seconds",
			Help:    "Time to archive, normalize and dispatch one answer",
			Buckets: prometheus.DefBuckets,
		},
	)

	ArchiveWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbwc_adapter_archive_writes_total",
			Help: "Archive writes by entity and status",
		},
		[]string{"entity", "status"},
	)

	// Webhook metrics
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbwc_adapter_webhook_deliveries_total",
			Help: "Webhook delivery attempts by event type and status",
		},
		[]string{"event_type", "status"},
	)

	DeadLetters = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qbwc_adapter_dead_letters_total",
			Help: "Dead letters by event type and whether they were persisted",
		},
		[]string{"event_type", "status"},
	)
)
