package procmgr

import (
	"time"
)

// MetricsCollector defines the interface for collecting process manager metrics
type MetricsCollector interface {
	// ProcessStarted records a successful spawn
	ProcessStarted(id ProcessID)

	// ProcessStartFailed records a spawn that failed before the process ran
	ProcessStartFailed(id ProcessID)

	// ProcessExited records an exit and the process lifetime
	ProcessExited(id ProcessID, reason ExitReason, lifetime time.Duration)

	// ProcessSignaled records a signal delivered to a process
	ProcessSignaled(id ProcessID, signal string)

	// ProcessTerminationDuration records the duration of termination
	ProcessTerminationDuration(id ProcessID, duration time.Duration)

	// RunningProcesses records the current number of live processes
	RunningProcesses(count int)
}

// noopMetricsCollector is a no-op implementation of MetricsCollector
type noopMetricsCollector struct{}

func (n *noopMetricsCollector) ProcessStarted(id ProcessID)                                           {}
func (n *noopMetricsCollector) ProcessStartFailed(id ProcessID)                                       {}
func (n *noopMetricsCollector) ProcessExited(id ProcessID, reason ExitReason, lifetime time.Duration) {}
func (n *noopMetricsCollector) ProcessSignaled(id ProcessID, signal string)                           {}
func (n *noopMetricsCollector) ProcessTerminationDuration(id ProcessID, duration time.Duration)       {}
func (n *noopMetricsCollector) RunningProcesses(count int)                                            {}

// NewNoopMetricsCollector creates a no-op metrics collector
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}
