package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the service exports.
type Metrics struct {
	// --- Vault operations ---
	OpsApplied    *prometheus.CounterVec
	OpsRejected   *prometheus.CounterVec
	EventsEmitted *prometheus.CounterVec

	// --- Vault ledger gauges ---
	TotalShares        *prometheus.GaugeVec
	TotalIdle          *prometheus.GaugeVec
	WithdrawalsPending *prometheus.GaugeVec
	SharesInCustody    *prometheus.GaugeVec
	Price              *prometheus.GaugeVec

	// --- Ingestion ---
	CommandsReceived *prometheus.CounterVec
	CommandsRejected *prometheus.CounterVec
	CommandLatency   *prometheus.HistogramVec

	// --- Event publishing ---
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter

	// --- Persistence ---
	SnapshotsTaken    prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes *prometheus.GaugeVec
	PersistErrors     *prometheus.CounterVec

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics against reg. Tests pass a
// fresh registry so parallel constructions never collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	latencyBuckets := []float64{
		0.00001, 0.000025, 0.00005, 0.0001, 0.00025,
		0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stoken_vault_ops_applied_total",
			Help: "Vault operations applied successfully",
		}, []string{"vault", "op"}),

		OpsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stoken_vault_ops_rejected_total",
			Help: "Vault operations rejected by a business rule",
		}, []string{"vault", "op", "reason"}),

		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stoken_vault_events_emitted_total",
			Help: "Domain events emitted by vault engines",
		}, []string{"vault", "event_type"}),

		TotalShares: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stoken_vault_total_shares",
			Help: "Outstanding share supply tracked by the vault",
		}, []string{"vault"}),

		TotalIdle: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stoken_vault_total_idle",
			Help: "Idle underlying funds held by the vault",
		}, []string{"vault"}),

		WithdrawalsPending: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stoken_vault_withdrawals_pending",
			Help: "Underlying owed to pending withdrawal requests",
		}, []string{"vault"}),

		SharesInCustody: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stoken_vault_shares_in_custody",
			Help: "Shares escrowed for pending withdrawals",
		}, []string{"vault"}),

		Price: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stoken_vault_price",
			Help: "Current share price in fixed-point units",
		}, []string{"vault"}),

		CommandsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stoken_ingest_commands_received_total",
			Help: "Commands received from the message bus",
		}, []string{"command"}),

		CommandsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stoken_ingest_commands_rejected_total",
			Help: "Commands rejected before dispatch (parse, auth, unknown)",
		}, []string{"reason"}),

		CommandLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stoken_ingest_command_latency_seconds",
			Help:    "Receive to engine dispatch complete",
			Buckets: latencyBuckets,
		}, []string{"command"}),

		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "stoken_publish_events_total",
			Help: "Events published to the message bus",
		}),

		PublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "stoken_publish_errors_total",
			Help: "Event publish failures",
		}),

		SnapshotsTaken: factory.NewCounter(prometheus.CounterOpts{
			Name: "stoken_snapshot_taken_total",
			Help: "State snapshots written",
		}),

		SnapshotDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stoken_snapshot_duration_seconds",
			Help:    "Snapshot serialization plus write time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		SnapshotSizeBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stoken_snapshot_size_bytes",
			Help: "Size of the last snapshot per vault",
		}, []string{"vault"}),

		PersistErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stoken_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		QueryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stoken_query_requests_total",
			Help: "Query API requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stoken_query_duration_seconds",
			Help:    "Query API latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),
	}
}
