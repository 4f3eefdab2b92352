package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the compliance audit log.
type Metrics struct {
	Entries         *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	PersistDuration prometheus.Histogram
}

// NewMetrics registers the compliance audit metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Entries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_audit_entries_total",
			Help: "Audit entries persisted, by action and outcome",
		}, []string{"action", "outcome"}),
		PersistFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_audit_persist_failures_total",
			Help: "Audit entries that failed to persist, by action",
		}, []string{"action"}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "notary_audit_persist_duration_seconds",
			Help:    "Latency of synchronous audit writes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncEntries(action, outcome string) {
	m.Entries.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncPersistFailures(action string) {
	m.PersistFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) ObservePersistDuration(seconds float64) {
	m.PersistDuration.Observe(seconds)
}
