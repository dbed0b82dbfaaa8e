// Package metrics exposes Prometheus metrics for detection runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Detector label values.
const (
	DetectorZScore   = "zscore"
	DetectorDensity  = "density"
	DetectorResidual = "residual"
	DetectorAnomaly  = "anomaly"
)

// Metrics holds the run metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal         *prometheus.CounterVec
	RecordsScored     prometheus.Counter
	FlagsTotal        *prometheus.CounterVec
	DegenerateColumns *prometheus.CounterVec
	ResidualSigma     prometheus.Gauge
	RunDuration       prometheus.Histogram
}

// New registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turbineguard_runs_total",
				Help: "Total detection runs by outcome",
			},
			[]string{"status"},
		),

		RecordsScored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "turbineguard_records_scored_total",
				Help: "Total records scored by successful runs",
			},
		),

		FlagsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turbineguard_flags_total",
				Help: "Total records flagged, by detector",
			},
			[]string{"detector"},
		),

		DegenerateColumns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "turbineguard_degenerate_columns_total",
				Help: "Zero-variance sensor columns ignored by the z-score detector",
			},
			[]string{"column"},
		),

		ResidualSigma: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "turbineguard_residual_sigma",
				Help: "Residual standard deviation of the last run",
			},
		),

		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "turbineguard_run_duration_seconds",
				Help:    "Detection run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics in text exposition format for a
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
