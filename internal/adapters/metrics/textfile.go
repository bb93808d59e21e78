// Package metrics exports reconciliation results as Prometheus metrics in
// the node_exporter textfile format.
package metrics

import (
	"fmt"
	"sync"

	"github.com/felixgeelhaar/chocostate/internal/domain/execution"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "chocostate"

// Recorder collects metrics for reconciliation runs.
type Recorder struct {
	mu       sync.Mutex
	registry *prometheus.Registry

	runs           *prometheus.CounterVec
	actions        *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	lastRun        prometheus.Gauge
	runDuration    prometheus.Gauge
	changed        prometheus.Gauge
	failed         prometheus.Gauge
	rebootRequired prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder(namespace string) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	r := &Recorder{
		registry: prometheus.NewRegistry(),

		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of reconciliation runs by status",
			},
			[]string{"status"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of executed actions by kind and classification",
			},
			[]string{"action", "class"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Duration of choco invocations in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2700},
			},
			[]string{"action"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last reconciliation run finished",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last reconciliation run in seconds",
		}),
		changed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_changed",
			Help:      "Whether the last run changed the host (1) or not (0)",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_failed",
			Help:      "Whether the last run failed (1) or not (0)",
		}),
		rebootRequired: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reboot_required",
			Help:      "Whether a package reported that a reboot is required",
		}),
	}

	r.registry.MustRegister(
		r.runs,
		r.actions,
		r.actionDuration,
		r.lastRun,
		r.runDuration,
		r.changed,
		r.failed,
		r.rebootRequired,
	)

	return r
}

// Observe records a finished run.
func (r *Recorder) Observe(report execution.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs.WithLabelValues(runStatus(report)).Inc()

	for _, res := range report.Results {
		kind := string(res.Action().Kind)
		r.actions.WithLabelValues(kind, string(res.Class())).Inc()
		if res.Command() != "" {
			r.actionDuration.WithLabelValues(kind).Observe(res.Duration().Seconds())
		}
	}

	r.lastRun.Set(float64(report.FinishedAt.Unix()))
	r.runDuration.Set(report.Duration().Seconds())
	r.changed.Set(boolGauge(report.Changed))
	r.failed.Set(boolGauge(report.Failed))
	r.rebootRequired.Set(boolGauge(report.RebootRequired))
}

// WriteTextfile atomically writes the collected metrics to path.
func (r *Recorder) WriteTextfile(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func runStatus(report execution.Report) string {
	switch {
	case report.Failed:
		return "failed"
	case report.Changed:
		return "changed"
	default:
		return "unchanged"
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
