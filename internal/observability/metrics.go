// Package observability provides logging, batch run metrics and the clock
// used to stamp output provenance.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of one command run. A batch run
// exits when done, so the metrics are written to a textfile for the node
// exporter textfile collector instead of being served.
type Metrics struct {
	registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec // labels: command, outcome={success,error}
	StepsReadTotal   *prometheus.CounterVec // labels: pass={monthly,annual,single,peak}
	LayersWritten    prometheus.Counter
	VariablesSkipped prometheus.Counter
	RunDuration      *prometheus.GaugeVec // labels: command
	LastSuccess      *prometheus.GaugeVec // labels: command
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marineclim",
			Name:      "runs_total",
			Help:      "Command runs by outcome.",
		}, []string{"command", "outcome"}),
		StepsReadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marineclim",
			Name:      "time_steps_read_total",
			Help:      "Time steps loaded from the input, by scan.",
		}, []string{"pass"}),
		LayersWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marineclim",
			Name:      "layers_written_total",
			Help:      "Aggregate layers written to the output file.",
		}),
		VariablesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marineclim",
			Name:      "variables_skipped_total",
			Help:      "Requested variables skipped because they were absent from the input.",
		}),
		RunDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "marineclim",
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run.",
		}, []string{"command"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "marineclim",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"command"}),
	}
	m.registry.MustRegister(
		m.RunsTotal,
		m.StepsReadTotal,
		m.LayersWritten,
		m.VariablesSkipped,
		m.RunDuration,
		m.LastSuccess,
	)
	return m
}

// StepsRead counts n time steps loaded by pass.
func (m *Metrics) StepsRead(pass string, n int) {
	m.StepsReadTotal.WithLabelValues(pass).Add(float64(n))
}

// Registry exposes the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
// The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
