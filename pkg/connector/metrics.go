package connector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons reported to MetricsCollector.MessageDropped
const (
	DropMalformed     = "malformed"
	DropUnknownKey    = "unknown_key"
	DropUnsupported   = "unsupported_event"
	DropMissingNode   = "missing_node"
	DropConversion    = "conversion"
	DropEncode        = "encode"
	DropSendFailed    = "send_failed"
	DropNotConnected  = "not_connected"
	DropNoExternalKey = "no_external_key"
	DropForeignNode   = "foreign_node"
)

// MetricsCollector defines the interface for collecting connector metrics
type MetricsCollector interface {
	// MessageReceived records an inbound value applied to the tree
	MessageReceived(instanceID string)

	// MessageSent records an outbound value written to the stream
	MessageSent(instanceID string)

	// MessageDropped records a message that was discarded
	MessageDropped(instanceID, reason string)

	// ConnectDuration records how long Connect took
	ConnectDuration(instanceID string, duration time.Duration, err error)

	// Disconnected records a disconnect
	Disconnected(instanceID string)
}

type noopMetricsCollector struct{}

func (noopMetricsCollector) MessageReceived(string)                       {}
func (noopMetricsCollector) MessageSent(string)                           {}
func (noopMetricsCollector) MessageDropped(string, string)                {}
func (noopMetricsCollector) ConnectDuration(string, time.Duration, error) {}
func (noopMetricsCollector) Disconnected(string)                          {}

// NewNoopMetricsCollector creates a no-op metrics collector
func NewNoopMetricsCollector() MetricsCollector {
	return noopMetricsCollector{}
}

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	received        *prometheus.CounterVec
	sent            *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	connectDuration *prometheus.HistogramVec
	disconnects     *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a new Prometheus metrics collector
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "connector"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.received = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound values applied to the tree",
		},
		[]string{"instance_id"},
	)

	pmc.sent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Outbound values written to the stream",
		},
		[]string{"instance_id"},
	)

	pmc.dropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages discarded by reason",
		},
		[]string{"instance_id", "reason"},
	)

	pmc.connectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_duration_seconds",
			Help:      "Duration of Connect calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"instance_id", "status"},
	)

	pmc.disconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Total number of disconnects",
		},
		[]string{"instance_id"},
	)

	pmc.registry.MustRegister(
		pmc.received,
		pmc.sent,
		pmc.dropped,
		pmc.connectDuration,
		pmc.disconnects,
	)

	return pmc
}

// MessageReceived records an inbound value
func (pmc *PrometheusMetricsCollector) MessageReceived(instanceID string) {
	pmc.received.WithLabelValues(instanceID).Inc()
}

// MessageSent records an outbound value
func (pmc *PrometheusMetricsCollector) MessageSent(instanceID string) {
	pmc.sent.WithLabelValues(instanceID).Inc()
}

// MessageDropped records a discarded message
func (pmc *PrometheusMetricsCollector) MessageDropped(instanceID, reason string) {
	pmc.dropped.WithLabelValues(instanceID, reason).Inc()
}

// ConnectDuration records how long Connect took
func (pmc *PrometheusMetricsCollector) ConnectDuration(instanceID string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pmc.connectDuration.WithLabelValues(instanceID, status).Observe(duration.Seconds())
}

// Disconnected records a disconnect
func (pmc *PrometheusMetricsCollector) Disconnected(instanceID string) {
	pmc.disconnects.WithLabelValues(instanceID).Inc()
}

// Registry returns the Prometheus registry for HTTP handler setup
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

var _ MetricsCollector = (*PrometheusMetricsCollector)(nil)
