package procmgr

import (
	"fmt"
	"time"
)

// ProcessID uniquely identifies a managed process
type ProcessID string

// Spec describes a process to launch
type Spec struct {
	// ID names the process; it must be unique among running processes
	ID ProcessID

	// Path is the executable
	Path string

	// Args are passed after the executable name
	Args []string

	// Env is appended to the supervisor's environment
	Env []string

	// Dir is the working directory; empty means the supervisor's
	Dir string
}

// ExitReason classifies how a process ended
type ExitReason int

const (
	// ExitReasonExited - process exited with status 0
	ExitReasonExited ExitReason = iota
	// ExitReasonFailed - process exited with a non-zero status
	ExitReasonFailed
	// ExitReasonSignaled - process was terminated by a signal
	ExitReasonSignaled
	// ExitReasonError - waiting for the process failed
	ExitReasonError
)

// String returns the string representation of an ExitReason
func (r ExitReason) String() string {
	switch r {
	case ExitReasonExited:
		return "Exited"
	case ExitReasonFailed:
		return "Failed"
	case ExitReasonSignaled:
		return "Signaled"
	case ExitReasonError:
		return "Error"
	default:
		return "Unknown"
	}
}

// ExitStatus describes a finished process
type ExitStatus struct {
	Reason ExitReason

	// Code is the exit status, or -1 if the process was signaled
	Code int

	// Signal names the terminating signal, if any
	Signal string

	// Err is the error returned by Wait, if any
	Err error

	// Lifetime is the time between start and exit
	Lifetime time.Duration
}

// Clean reports whether the process exited on its own with status 0
func (s ExitStatus) Clean() bool {
	return s.Reason == ExitReasonExited
}

func (s ExitStatus) String() string {
	switch s.Reason {
	case ExitReasonSignaled:
		return fmt.Sprintf("signaled (%s)", s.Signal)
	case ExitReasonError:
		return fmt.Sprintf("error (%v)", s.Err)
	default:
		return fmt.Sprintf("exit status %d", s.Code)
	}
}

// Stream identifies a process output stream
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)
