package pipeline

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/entrygate/entry"
)

// Metrics collects run statistics on a private registry.
type Metrics struct {
	registry *prometheus.Registry
	entries  *prometheus.CounterVec
	errors   *prometheus.CounterVec
	warnings prometheus.Counter
	duration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "entrygate",
			Name:      "entries_total",
			Help:      "Validated entries by verdict status.",
		}, []string{"status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "entrygate",
			Name:      "entry_errors_total",
			Help:      "Validation errors by phase.",
		}, []string{"phase"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "entrygate",
			Name:      "entry_warnings_total",
			Help:      "Validation warnings.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "entrygate",
			Name:      "run_duration_seconds",
			Help:      "Duration of pipeline runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	m.registry.MustRegister(m.entries, m.errors, m.warnings, m.duration)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeVerdict(v *entry.Verdict) {
	m.entries.WithLabelValues(string(v.Status())).Inc()
	for _, e := range v.Errors {
		m.errors.WithLabelValues(string(e.Phase)).Inc()
	}
	m.warnings.Add(float64(len(v.Warnings)))
}

func (m *Metrics) observeRun(d time.Duration) {
	m.duration.Observe(d.Seconds())
}

// WriteFile writes the metrics in text exposition format for the node
// exporter textfile collector.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
