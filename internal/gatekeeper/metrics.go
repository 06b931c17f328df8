package gatekeeper

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the gatekeeper.
type Metrics struct {
	VerdictsTotal *prometheus.CounterVec
}

// NewMetrics registers gatekeeper metrics once per process.
//
//   - eternal_gatekeeper_verdicts_total{phase,verdict} - phase evaluations
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			VerdictsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eternal_gatekeeper_verdicts_total",
					Help: "Total number of gatekeeper phase evaluations by verdict",
				},
				[]string{"phase", "verdict"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) RecordVerdict(phase PhaseName, approved bool) {
	verdict := "rejected"
	if approved {
		verdict = "approved"
	}
	m.VerdictsTotal.WithLabelValues(string(phase), verdict).Inc()
}
