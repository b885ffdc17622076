// Package monitoring holds the prometheus metrics and the system
// resource snapshot embedded in status broadcasts.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics, scraped from /metrics.
var (
	MessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acarshub_messages_received_total",
		Help: "Messages received from decoders, by kind",
	}, []string{"kind"})

	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "acarshub_messages_processed_total",
		Help: "Messages successfully run through the processor, by kind",
	}, []string{"kind"})

	MessagesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acarshub_messages_saved_total",
		Help: "Messages persisted to storage",
	})

	MessagesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acarshub_messages_skipped_total",
		Help: "Payloads dropped by the formatter",
	})

	QueueOverflows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acarshub_queue_overflows_total",
		Help: "Messages dropped by the bounded queue",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "acarshub_queue_depth",
		Help: "Current queue length",
	})

	AlertMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acarshub_alert_matches_total",
		Help: "Alert term matches recorded",
	})

	StorageErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acarshub_storage_errors_total",
		Help: "Storage operations abandoned after an error",
	})

	ListenerConnected = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "acarshub_listener_connected",
		Help: "Listener connection state (1 connected, 0 not)",
	}, []string{"kind", "transport", "endpoint"})

	SinkClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "acarshub_sink_clients",
		Help: "Connected real-time subscribers",
	})
)
