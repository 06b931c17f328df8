package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for request handling.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers orchestrator metrics once per process.
//
//   - eternal_requests_total{mode,state} - handled requests by terminal state
//   - eternal_request_duration_seconds{mode} - end-to-end handling time
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eternal_requests_total",
					Help: "Total number of handled requests by terminal state",
				},
				[]string{"mode", "state"},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "eternal_request_duration_seconds",
					Help:    "Request handling duration",
					Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
				},
				[]string{"mode"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) RecordRequest(mode Mode, state State, seconds float64) {
	m.RequestsTotal.WithLabelValues(string(mode), string(state)).Inc()
	m.RequestDuration.WithLabelValues(string(mode)).Observe(seconds)
}
