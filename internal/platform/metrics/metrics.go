package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service-wide Prometheus collectors.
type Metrics struct {
	PipelineOutcomes   *prometheus.CounterVec
	PipelineStep       *prometheus.HistogramVec
	StorageFailures    prometheus.Counter
	QuoteFailures      *prometheus.CounterVec
	TopUps             *prometheus.CounterVec
	Charges            *prometheus.CounterVec
	SubmissionsPending prometheus.Gauge
	HTTPLatency        *prometheus.HistogramVec
}

// New creates and registers all metrics. Call once per process.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers against reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PipelineOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_pipeline_outcomes_total",
			Help: "Notarization pipeline results by final state and error code",
		}, []string{"state", "code"}),
		PipelineStep: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notary_pipeline_step_duration_seconds",
			Help:    "Duration of each notarization pipeline step",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"step"}),
		StorageFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "notary_storage_failures_total",
			Help: "Content store operations that failed after retries",
		}),
		QuoteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_quote_failures_total",
			Help: "Rate quote lookups that failed, by provider",
		}, []string{"provider"}),
		TopUps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_top_ups_total",
			Help: "Balance top-ups by plan and outcome",
		}, []string{"plan", "outcome"}),
		Charges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_charges_total",
			Help: "Per-submission balance charges by outcome",
		}, []string{"outcome"}),
		SubmissionsPending: f.NewGauge(prometheus.GaugeOpts{
			Name: "notary_submissions_in_flight",
			Help: "Ledger submissions currently awaiting confirmation",
		}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notary_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) ObservePipelineOutcome(state, code string) {
	m.PipelineOutcomes.WithLabelValues(state, code).Inc()
}

func (m *Metrics) ObserveStep(step string, start time.Time) {
	m.PipelineStep.WithLabelValues(step).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncStorageFailures() {
	m.StorageFailures.Inc()
}

func (m *Metrics) IncQuoteFailures(provider string) {
	m.QuoteFailures.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncTopUp(plan, outcome string) {
	m.TopUps.WithLabelValues(plan, outcome).Inc()
}

func (m *Metrics) IncCharge(outcome string) {
	m.Charges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	m.HTTPLatency.WithLabelValues(method, route, status).Observe(d.Seconds())
}
