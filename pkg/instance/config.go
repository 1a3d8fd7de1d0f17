package instance

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/connector"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/procmgr"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/tree"
)

// Instance types
const (
	TypeClient = "client"
	TypeServer = "server"
)

// Config holds the manager settings
type Config struct {
	// Executables maps an instance type to the binary started for it
	Executables map[string]string

	// Host is where game processes serve TreeSync
	Host string

	// BasePort is the first port handed to instances whose id is not a port
	BasePort int

	// WorkDir is the working directory of spawned processes; empty means ours
	WorkDir string

	// StopGracePeriod is how long Stop waits after SIGTERM before killing
	StopGracePeriod time.Duration

	// SnapshotInterval is the period of RunSnapshots
	SnapshotInterval time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Executables:      map[string]string{},
		Host:             "localhost",
		BasePort:         31416,
		StopGracePeriod:  10 * time.Second,
		SnapshotInterval: time.Minute,
	}
}

// ConnectorFactory builds the connector for an instance subtree
type ConnectorFactory func(subtree *tree.Node, instanceType, host string, port int) *connector.Connector

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithStore sets where instance descriptors are loaded from and saved to
func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(mc MetricsCollector) Option {
	return func(m *Manager) {
		m.metrics = mc
	}
}

// WithTracer sets the tracer used for lifecycle spans
func WithTracer(tracer trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = tracer
	}
}

// WithProcessManager sets the process manager used to spawn instances
func WithProcessManager(pm *procmgr.ProcessManager) Option {
	return func(m *Manager) {
		m.procs = pm
	}
}

// WithOutputSink sets where process output goes. It only applies to the
// process manager built by New.
func WithOutputSink(sink procmgr.OutputSink) Option {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithConnectorFactory replaces how connectors are built
func WithConnectorFactory(f ConnectorFactory) Option {
	return func(m *Manager) {
		m.newConnector = f
	}
}

// WithConnectorOptions adds options for connectors built by the default
// factory.
func WithConnectorOptions(opts ...connector.Option) Option {
	return func(m *Manager) {
		m.connOpts = append(m.connOpts, opts...)
	}
}
