package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the instruments the pipeline and gateway update.
type Metrics struct {
	PingsIngested    prometheus.Counter
	PingsDropped     *prometheus.CounterVec
	RecordsPersisted prometheus.Counter
	BroadcastsSent   prometheus.Counter
	ConnectedViewers prometheus.Gauge
	RequestLatency   *prometheus.HistogramVec
}

// NewMetrics builds and registers the instrument set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendgate_pings_ingested_total",
			Help: "Presence pings received from the upstream device feed.",
		}),
		PingsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendgate_pings_dropped_total",
			Help: "Presence pings dropped before persistence, by reason.",
		}, []string{"reason"}),
		RecordsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendgate_records_persisted_total",
			Help: "Attendance records successfully written to storage.",
		}),
		BroadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "attendgate_broadcasts_sent_total",
			Help: "Presence-update envelopes delivered to viewer connections.",
		}),
		ConnectedViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "attendgate_connected_viewers",
			Help: "Currently authenticated dashboard connections.",
		}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendgate_request_duration_seconds",
			Help:    "Pull-request handler latency by request type.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.PingsIngested,
		m.PingsDropped,
		m.RecordsPersisted,
		m.BroadcastsSent,
		m.ConnectedViewers,
		m.RequestLatency,
	)
	return m
}

// Drop reasons for attendgate_pings_dropped_total.
const (
	DropMalformed       = "malformed"
	DropUnknownEmployee = "unknown_employee"
	DropPersistence     = "persistence_error"
)
