package procmgr

import (
	"log/slog"
	"time"
)

// Option configures the ProcessManager
type Option func(*ProcessManager)

// WithLogger sets the logger for lifecycle messages
func WithLogger(logger *slog.Logger) Option {
	return func(pm *ProcessManager) {
		pm.logger = logger
	}
}

// WithOutputSink sets where process stdout/stderr lines go
func WithOutputSink(sink OutputSink) Option {
	return func(pm *ProcessManager) {
		pm.sink = sink
	}
}

// WithGracePeriod sets how long Terminate waits after SIGTERM before killing
func WithGracePeriod(d time.Duration) Option {
	return func(pm *ProcessManager) {
		pm.gracePeriod = d
	}
}

// WithMetricsCollector sets the metrics collector
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(pm *ProcessManager) {
		pm.metrics = mc
	}
}
