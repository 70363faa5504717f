package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for reconciliation and tracker calls.
type Metrics struct {
	ReconcilesTotal     *prometheus.CounterVec
	ReconcileDuration   *prometheus.HistogramVec
	ErrorsTotal         *prometheus.CounterVec
	TrackerCallDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns reconcile metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReconcilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phalerts_reconciles_total",
			Help: "Total reconciliations by outcome.",
		}, []string{"outcome"}),
		ReconcileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phalerts_reconcile_duration_seconds",
			Help:    "Duration of reconciliations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"outcome"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "phalerts_request_errors_total",
			Help: "Total failed reconciliations by error kind.",
		}, []string{"kind"}),
		TrackerCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phalerts_tracker_request_duration_seconds",
			Help:    "Duration of outgoing tracker API calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}, []string{"api_call", "outcome"}),
	}

	reg.MustRegister(
		m.ReconcilesTotal,
		m.ReconcileDuration,
		m.ErrorsTotal,
		m.TrackerCallDuration,
	)

	return m
}

// Hooks returns an EngineHooks that records reconcile metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnComplete: func(e *CompleteEvent) {
			outcome := string(e.Outcome)
			if e.Err != nil {
				outcome = "error"
				m.ErrorsTotal.WithLabelValues(ErrorKind(e.Err)).Inc()
			}
			m.ReconcilesTotal.WithLabelValues(outcome).Inc()
			m.ReconcileDuration.WithLabelValues(outcome).Observe(e.Duration)
		},
	}
}

// ObserveTrackerCall records the duration of one tracker API call.
func (m *Metrics) ObserveTrackerCall(apiCall, outcome string, dur time.Duration) {
	m.TrackerCallDuration.WithLabelValues(apiCall, outcome).Observe(dur.Seconds())
}
