package allowlist

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "good_bots"

	outcomeOK      = "ok"
	outcomeEmpty   = "empty"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

// Metrics collects statistics about a generation run on its own registry,
// suitable for the node_exporter textfile collector.
type Metrics struct {
	registry *prometheus.Registry

	sourcesTotal    *prometheus.CounterVec
	botRanges       *prometheus.GaugeVec
	rangesTotal     prometheus.Gauge
	lastSuccessTime prometheus.Gauge
}

// NewMetrics creates and registers the run metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sourcesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sources_total",
			Help:      "Index entries processed, by outcome.",
		}, []string{"outcome"}),
		botRanges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bot_ranges",
			Help:      "Number of ranges written for each bot.",
		}, []string{"bot"}),
		rangesTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ranges_total",
			Help:      "Total IP ranges reported in the generated file.",
		}),
		lastSuccessTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful generation.",
		}),
	}
	m.registry.MustRegister(m.sourcesTotal, m.botRanges, m.rangesTotal, m.lastSuccessTime)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the current metrics in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// sourceProcessed counts an index entry by outcome.
func (m *Metrics) sourceProcessed(outcome string) {
	if m == nil {
		return
	}
	m.sourcesTotal.WithLabelValues(outcome).Inc()
}

// recordRun stores the result of a successful run.
func (m *Metrics) recordRun(res *Result, at time.Time) {
	if m == nil {
		return
	}
	m.botRanges.Reset()
	for name, ranges := range res.Bots {
		m.botRanges.WithLabelValues(name).Set(float64(len(ranges)))
	}
	m.rangesTotal.Set(float64(res.Total))
	m.lastSuccessTime.Set(float64(at.Unix()))
}
