package swarm

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the fetch swarm.
type Metrics struct {
	TasksTotal    *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec
	FetchDuration prometheus.Histogram
	CacheHits     *prometheus.CounterVec
}

// NewMetrics registers swarm metrics once per process.
//
// Metrics:
//   - eternal_swarm_tasks_total{source,outcome} - tasks by terminal outcome
//   - eternal_swarm_task_duration_seconds{source} - per-task latency
//   - eternal_swarm_fetch_duration_seconds - whole fan-out/fan-in latency
//   - eternal_swarm_cache_hits_total{cache} - web source cache hits
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			TasksTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eternal_swarm_tasks_total",
					Help: "Total number of swarm tasks by outcome",
				},
				[]string{"source", "outcome"}, // "success", "failure", "panic"
			),
			TaskDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "eternal_swarm_task_duration_seconds",
					Help:    "Duration of individual swarm tasks in seconds",
					Buckets: []float64{0.05, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 10},
				},
				[]string{"source"},
			),
			FetchDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "eternal_swarm_fetch_duration_seconds",
					Help:    "Duration of a full swarm fetch in seconds",
					Buckets: []float64{0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 10, 30},
				},
			),
			CacheHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eternal_swarm_cache_hits_total",
					Help: "Total number of web source cache hits",
				},
				[]string{"cache"}, // "page" or "robots"
			),
		}
	})
	return globalMetrics
}

// RecordTask records a finished task.
func (m *Metrics) RecordTask(source, outcome string, seconds float64) {
	m.TasksTotal.WithLabelValues(source, outcome).Inc()
	m.TaskDuration.WithLabelValues(source).Observe(seconds)
}

// RecordFetch records a finished fan-out.
func (m *Metrics) RecordFetch(seconds float64) {
	m.FetchDuration.Observe(seconds)
}

// RecordCacheHit records a web cache hit.
func (m *Metrics) RecordCacheHit(cache string) {
	m.CacheHits.WithLabelValues(cache).Inc()
}
