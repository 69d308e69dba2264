package issuance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeIssued        = "issued"
	outcomeAlreadyIssued = "already_issued"
)

// Metrics observes pipeline runs. A nil *Metrics records nothing.
type Metrics struct {
	Outcomes          *prometheus.CounterVec
	HolderKeyFailures *prometheus.CounterVec
	IssueLatency      prometheus.Histogram
}

// NewMetrics registers the issuance metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "issuer_issuance_outcomes_total",
			Help: "Total issuance pipeline runs by outcome",
		}, []string{"outcome"}),
		HolderKeyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "issuer_issuance_holder_key_failures_total",
			Help: "Total holder key resolution failures by reason",
		}, []string{"reason"}),
		IssueLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "issuer_issuance_duration_seconds",
			Help:    "Duration of issuance pipeline runs that produced a credential",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementHolderKeyFailure(reason string) {
	if m != nil {
		m.HolderKeyFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ObserveIssueLatency(d time.Duration) {
	if m != nil {
		m.IssueLatency.Observe(d.Seconds())
	}
}
