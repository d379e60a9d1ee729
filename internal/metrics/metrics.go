// Package metrics collects decode and summarization counters for a run and
// writes them in the Prometheus textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors of one run. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	decoded    *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	groups     *prometheus.CounterVec
	iterations prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		decoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "affy",
			Name:      "files_decoded_total",
			Help:      "Files decoded successfully, by kind and encoding.",
		}, []string{"kind", "format"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "affy",
			Name:      "decode_failures_total",
			Help:      "Files that failed to decode, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "affy",
			Name:      "decode_duration_seconds",
			Help:      "Time spent decoding one file.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"kind"}),
		groups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "affy",
			Name:      "probesets_summarized_total",
			Help:      "Probesets summarized, by whether median polish converged.",
		}, []string{"converged"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "affy",
			Name:      "polish_iterations",
			Help:      "Median polish sweeps per probeset.",
			Buckets:   prometheus.LinearBuckets(1, 1, 20),
		}),
	}
	m.Registry.MustRegister(m.decoded, m.failures, m.duration, m.groups, m.iterations)
	return m
}

// ObserveDecode records one decode attempt.
func (m *Metrics) ObserveDecode(kind, format string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err != nil {
		m.failures.WithLabelValues(kind).Inc()
		return
	}
	m.decoded.WithLabelValues(kind, format).Inc()
}

// ObservePolish records the outcome of one probeset fit.
func (m *Metrics) ObservePolish(converged bool, iterations int) {
	if m == nil {
		return
	}
	label := "false"
	if converged {
		label = "true"
	}
	m.groups.WithLabelValues(label).Inc()
	m.iterations.Observe(float64(iterations))
}

// WriteTextfile atomically writes all metrics to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
