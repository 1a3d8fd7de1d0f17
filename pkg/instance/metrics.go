package instance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for collecting instance metrics
type MetricsCollector interface {
	// TransitionApplied records a successful state transition
	TransitionApplied(id string, t Transition)

	// TransitionRejected records a refused state transition
	TransitionRejected(id string, from, to State)

	// Instances records the number of instances per state
	Instances(counts map[State]int)

	// ProcessExited records a forced stop after the process died
	ProcessExited(id, reason string)

	// SnapshotSaved records a save of the instance list
	SnapshotSaved(duration time.Duration, err error)
}

type noopMetricsCollector struct{}

func (noopMetricsCollector) TransitionApplied(string, Transition)    {}
func (noopMetricsCollector) TransitionRejected(string, State, State) {}
func (noopMetricsCollector) Instances(map[State]int)                 {}
func (noopMetricsCollector) ProcessExited(string, string)            {}
func (noopMetricsCollector) SnapshotSaved(time.Duration, error)      {}

// NewNoopMetricsCollector creates a no-op metrics collector
func NewNoopMetricsCollector() MetricsCollector {
	return noopMetricsCollector{}
}

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	transitions      *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	instances        *prometheus.GaugeVec
	processExits     *prometheus.CounterVec
	snapshotDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "instance"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Applied lifecycle transitions",
		},
		[]string{"instance_id", "transition"},
	)

	pmc.rejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_rejected_total",
			Help:      "Refused lifecycle transitions",
		},
		[]string{"instance_id", "from", "to"},
	)

	pmc.instances = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances",
			Help:      "Number of instances by state",
		},
		[]string{"state"},
	)

	pmc.processExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_exits_total",
			Help:      "Instances stopped because their process exited",
		},
		[]string{"instance_id", "reason"},
	)

	pmc.snapshotDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Duration of instance list saves",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	pmc.registry.MustRegister(
		pmc.transitions,
		pmc.rejected,
		pmc.instances,
		pmc.processExits,
		pmc.snapshotDuration,
	)

	return pmc
}

// TransitionApplied records a successful state transition
func (pmc *PrometheusMetricsCollector) TransitionApplied(id string, t Transition) {
	pmc.transitions.WithLabelValues(id, t.Name).Inc()
}

// TransitionRejected records a refused state transition
func (pmc *PrometheusMetricsCollector) TransitionRejected(id string, from, to State) {
	pmc.rejected.WithLabelValues(id, string(from), string(to)).Inc()
}

// Instances records the number of instances per state
func (pmc *PrometheusMetricsCollector) Instances(counts map[State]int) {
	for _, s := range []State{StateStopped, StateStarted, StateRunning, StatePaused} {
		pmc.instances.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// ProcessExited records a forced stop after the process died
func (pmc *PrometheusMetricsCollector) ProcessExited(id, reason string) {
	pmc.processExits.WithLabelValues(id, reason).Inc()
}

// SnapshotSaved records a save of the instance list
func (pmc *PrometheusMetricsCollector) SnapshotSaved(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pmc.snapshotDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry for HTTP handler setup
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)
