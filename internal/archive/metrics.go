package archive

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the archive.
type Metrics struct {
	LookupsTotal     *prometheus.CounterVec
	PutsTotal        *prometheus.CounterVec
	CorruptionsTotal prometheus.Counter
	Entries          prometheus.Gauge
}

// NewMetrics registers archive metrics once per process.
//
//   - eternal_archive_lookups_total{result} - hit or miss
//   - eternal_archive_puts_total{kind} - created or updated
//   - eternal_archive_corruptions_total - datasets discarded on load
//   - eternal_archive_entries - entry count at the last Stats call
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			LookupsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eternal_archive_lookups_total",
					Help: "Total number of archive lookups",
				},
				[]string{"result"},
			),
			PutsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "eternal_archive_puts_total",
					Help: "Total number of archive writes",
				},
				[]string{"kind"},
			),
			CorruptionsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "eternal_archive_corruptions_total",
					Help: "Total number of archive datasets discarded after failing the integrity check",
				},
			),
			Entries: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "eternal_archive_entries",
					Help: "Number of entries in the archive",
				},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) RecordLookup(hit bool) {
	if hit {
		m.LookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	m.LookupsTotal.WithLabelValues("miss").Inc()
}

func (m *Metrics) RecordPut(created bool) {
	if created {
		m.PutsTotal.WithLabelValues("created").Inc()
		return
	}
	m.PutsTotal.WithLabelValues("updated").Inc()
}

func (m *Metrics) RecordCorruption() {
	m.CorruptionsTotal.Inc()
}

func (m *Metrics) SetEntries(n int) {
	m.Entries.Set(float64(n))
}
