package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the mirror.
type Metrics struct {
	// --- Event processing ---
	EventsApplied  *prometheus.CounterVec
	EventsQueued   prometheus.Counter
	QueueDepth     prometheus.Gauge
	HandleDuration *prometheus.HistogramVec

	// --- Sequencing & staleness ---
	StaleDrops   *prometheus.CounterVec
	TopConflicts prometheus.Counter
	HeartbeatLag prometheus.Gauge

	// --- Reconciliation ---
	MarketReloads     prometheus.Counter
	FullResyncs       prometheus.Counter
	BookLoads         *prometheus.CounterVec
	BasisRecomputes   *prometheus.CounterVec
	BatchItemFailures prometheus.Counter

	// --- Feed ---
	FeedMessages   prometheus.Counter
	FeedReconnects prometheus.Counter
	ParseFailures  prometheus.Counter
}

// NewMetrics registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_events_applied_total",
			Help: "Feed events applied to mirrored state, by event kind.",
		}, []string{"kind"}),
		EventsQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_events_queued_total",
			Help: "Feed events deferred to the action queue during a reload.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mirror_action_queue_depth",
			Help: "Current depth of the action queue.",
		}),
		HandleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mirror_handle_duration_seconds",
			Help:    "Time spent applying one feed event, by event kind.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 10, 8),
		}, []string{"kind"}),

		StaleDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_stale_drops_total",
			Help: "Updates dropped by clock/tick guards, by entity.",
		}, []string{"entity"}),
		TopConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_book_top_conflicts_total",
			Help: "Book-top pushes with an equal clock but different prices.",
		}),
		HeartbeatLag: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mirror_heartbeat_lag_seconds",
			Help: "Age of the last processed heartbeat.",
		}),

		MarketReloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_market_reloads_total",
			Help: "Full market reloads.",
		}),
		FullResyncs: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_position_resyncs_total",
			Help: "Escalations to a full position resync after divergence.",
		}),
		BookLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_book_loads_total",
			Help: "Book snapshot fetches, by outcome.",
		}, []string{"outcome"}),
		BasisRecomputes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mirror_basis_recomputes_total",
			Help: "Basis recomputations from fill replay, by outcome.",
		}, []string{"outcome"}),
		BatchItemFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_batch_item_failures_total",
			Help: "Individual fetch failures inside bounded reconciliation batches.",
		}),

		FeedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_feed_messages_total",
			Help: "Raw messages read from the event feed.",
		}),
		FeedReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_feed_reconnects_total",
			Help: "Feed connection (re)establishments.",
		}),
		ParseFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "mirror_feed_parse_failures_total",
			Help: "Feed messages rejected by the decoder.",
		}),
	}
}
