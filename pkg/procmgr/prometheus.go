package procmgr

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	// Lifecycle metrics
	starts        *prometheus.CounterVec
	startFailures *prometheus.CounterVec
	exits         *prometheus.CounterVec
	running       prometheus.Gauge

	// Performance metrics
	lifetime            *prometheus.HistogramVec
	terminationDuration *prometheus.HistogramVec

	// Signal metrics
	signals *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "procmgr"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.starts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_starts_total",
			Help:      "Total number of processes launched",
		},
		[]string{"process_id"},
	)

	pmc.startFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_start_failures_total",
			Help:      "Total number of failed process launches",
		},
		[]string{"process_id"},
	)

	pmc.exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_exits_total",
			Help:      "Total number of process exits by reason",
		},
		[]string{"process_id", "reason"},
	)

	pmc.running = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processes_running",
			Help:      "Current number of live processes",
		},
	)

	pmc.lifetime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_lifetime_seconds",
			Help:      "Time between process launch and exit",
			Buckets:   []float64{1, 10, 60, 300, 1800, 3600, 6 * 3600, 24 * 3600},
		},
		[]string{"process_id"},
	)

	pmc.terminationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_termination_duration_seconds",
			Help:      "Duration of process termination operations",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"process_id"},
	)

	pmc.signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_signals_total",
			Help:      "Total number of signals delivered to processes",
		},
		[]string{"process_id", "signal"},
	)

	// Register all metrics
	pmc.registry.MustRegister(
		pmc.starts,
		pmc.startFailures,
		pmc.exits,
		pmc.running,
		pmc.lifetime,
		pmc.terminationDuration,
		pmc.signals,
	)

	return pmc
}

// ProcessStarted records a successful spawn
func (pmc *PrometheusMetricsCollector) ProcessStarted(id ProcessID) {
	pmc.starts.WithLabelValues(string(id)).Inc()
}

// ProcessStartFailed records a failed spawn
func (pmc *PrometheusMetricsCollector) ProcessStartFailed(id ProcessID) {
	pmc.startFailures.WithLabelValues(string(id)).Inc()
}

// ProcessExited records an exit and the process lifetime
func (pmc *PrometheusMetricsCollector) ProcessExited(id ProcessID, reason ExitReason, lifetime time.Duration) {
	pmc.exits.WithLabelValues(
		string(id),
		reason.String(),
	).Inc()
	pmc.lifetime.WithLabelValues(string(id)).Observe(lifetime.Seconds())
}

// ProcessSignaled records a delivered signal
func (pmc *PrometheusMetricsCollector) ProcessSignaled(id ProcessID, signal string) {
	pmc.signals.WithLabelValues(
		string(id),
		signal,
	).Inc()
}

// ProcessTerminationDuration records the duration of a termination operation
func (pmc *PrometheusMetricsCollector) ProcessTerminationDuration(id ProcessID, duration time.Duration) {
	pmc.terminationDuration.WithLabelValues(
		string(id),
	).Observe(duration.Seconds())
}

// RunningProcesses records the current number of live processes
func (pmc *PrometheusMetricsCollector) RunningProcesses(count int) {
	pmc.running.Set(float64(count))
}

// Registry returns the Prometheus registry for HTTP handler setup
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

// Compile-time interface compliance check
var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)
