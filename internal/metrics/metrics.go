package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesSent counts dispatched outbound messages per destination chain
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teller_messages_sent_total",
			Help: "Total number of outbound messages dispatched",
		},
		[]string{"destination_chain"},
	)

	// MessagesReceived counts settled inbound messages per source chain
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teller_messages_received_total",
			Help: "Total number of inbound messages settled",
		},
		[]string{"source_chain"},
	)

	// DuplicateDeliveries counts inbound deliveries absorbed as replays
	DuplicateDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teller_duplicate_deliveries_total",
			Help: "Total number of inbound deliveries dropped as already settled",
		},
		[]string{"source_chain"},
	)

	// AdmissionRejections counts requests refused before any state change
	AdmissionRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teller_admission_rejections_total",
			Help: "Total number of requests rejected by admission checks",
		},
		[]string{"operation", "reason"},
	)

	// DispatchDuration tracks end-to-end outbound dispatch time
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teller_dispatch_duration_seconds",
			Help:    "Outbound dispatch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"destination_chain"},
	)

	// ShareAmount tracks share amounts crossing the teller
	ShareAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teller_share_amount",
			Help:    "Share amounts bridged through the teller",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		},
		[]string{"direction"},
	)

	// PendingSends tracks sends stuck in pending past the age threshold
	PendingSends = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "teller_pending_sends",
			Help: "Number of sends stuck in pending past the age threshold",
		},
	)

	// RegistryChains tracks the number of registered chains
	RegistryChains = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "teller_registry_chains",
			Help: "Number of chains in the registry",
		},
	)

	// ErrorsTotal counts errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teller_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// GasUsed tracks gas used for Ethereum transactions
	GasUsed = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teller_gas_used",
			Help:    "Gas used for Ethereum transactions",
			Buckets: []float64{21000, 50000, 100000, 200000, 300000, 500000},
		},
		[]string{"operation"},
	)
)
