package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	Analyses      *prometheus.CounterVec
	Fallbacks     *prometheus.CounterVec
	Duration      prometheus.Histogram
	GuestRejected prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Analyses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "truthlens_analyses_total",
			Help: "Completed fact-check analyses by verdict label and analysis method.",
		}, []string{"label", "method"}),
		Fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "truthlens_fallbacks_total",
			Help: "Pipeline stages that degraded to their non-model path.",
		}, []string{"stage"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "truthlens_analysis_duration_seconds",
			Help:    "Wall time of one verification pipeline run.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		GuestRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "truthlens_guest_rejections_total",
			Help: "Guest check requests rejected by the daily limit.",
		}),
	}
}

func (m *Metrics) ObserveAnalysis(label, method string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if m.Analyses != nil {
		m.Analyses.WithLabelValues(label, method).Inc()
	}
	if m.Duration != nil {
		m.Duration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) IncFallback(stage string) {
	if m == nil || m.Fallbacks == nil {
		return
	}
	m.Fallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) IncGuestRejected() {
	if m == nil || m.GuestRejected == nil {
		return
	}
	m.GuestRejected.Inc()
}
