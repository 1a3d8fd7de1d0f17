package procmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
)

// Process is a running (or finished) child process
type Process struct {
	id        ProcessID
	spec      Spec
	cmd       *exec.Cmd
	startedAt time.Time
	logger    *slog.Logger
	metrics   MetricsCollector
	grace     time.Duration

	stdout *lineWriter
	stderr *lineWriter

	done chan struct{}

	mu       sync.Mutex
	status   ExitStatus
	exited   bool
	handlers []func(ExitStatus)
}

// ID returns the process id given in the Spec
func (p *Process) ID() ProcessID { return p.id }

// Spec returns the launch description
func (p *Process) Spec() Spec { return p.spec }

// PID returns the operating system process id
func (p *Process) PID() int { return p.cmd.Process.Pid }

// StartedAt returns the spawn time
func (p *Process) StartedAt() time.Time { return p.startedAt }

// Done is closed once the process has exited and its output is drained
func (p *Process) Done() <-chan struct{} { return p.done }

// Alive reports whether the process has not exited yet
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the process exits or ctx is done
func (p *Process) Wait(ctx context.Context) (ExitStatus, error) {
	select {
	case <-p.done:
		return p.ExitStatus(), nil
	case <-ctx.Done():
		return ExitStatus{}, ctx.Err()
	}
}

// ExitStatus returns the exit status; it is the zero value while running
func (p *Process) ExitStatus() ExitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// OnExit registers fn to be called once with the exit status. If the
// process has already exited fn runs immediately on the calling goroutine.
func (p *Process) OnExit(fn func(ExitStatus)) {
	p.mu.Lock()
	if !p.exited {
		p.handlers = append(p.handlers, fn)
		p.mu.Unlock()
		return
	}
	status := p.status
	p.mu.Unlock()
	fn(status)
}

// Signal delivers sig to the process
func (p *Process) Signal(sig os.Signal) error {
	if !p.Alive() {
		return hosterr.ErrProcessNotRunning(string(p.id))
	}
	if err := p.cmd.Process.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return hosterr.ErrProcessNotRunning(string(p.id))
		}
		return fmt.Errorf("signal %s to %s: %w", sig, p.id, err)
	}
	p.metrics.ProcessSignaled(p.id, sig.String())
	return nil
}

// Kill forcibly stops the process without waiting for it
func (p *Process) Kill() error {
	return p.Signal(os.Kill)
}

// Terminate sends SIGTERM and waits for the process to exit. If it is still
// alive after the grace period it is killed. Terminate returns once the
// process has exited or ctx is done.
func (p *Process) Terminate(ctx context.Context) error {
	if !p.Alive() {
		return nil
	}

	start := time.Now()
	defer func() {
		p.metrics.ProcessTerminationDuration(p.id, time.Since(start))
	}()

	if err := p.Signal(syscall.SIGTERM); err != nil {
		if hosterr.IsErrorCode(err, hosterr.ErrorCodeProcessNotRunning) {
			return nil
		}
		p.logger.Warn("failed to send SIGTERM, killing", "error", err)
		return p.killAndWait(ctx)
	}

	timer := time.NewTimer(p.grace)
	defer timer.Stop()

	select {
	case <-p.done:
		p.logger.Debug("process exited gracefully")
		return nil
	case <-timer.C:
		p.logger.Warn("process did not exit within grace period, force killing",
			"grace_period", p.grace)
		return p.killAndWait(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Process) killAndWait(ctx context.Context) error {
	if err := p.Kill(); err != nil && !hosterr.IsErrorCode(err, hosterr.ErrorCodeProcessNotRunning) {
		return fmt.Errorf("force kill: %w", err)
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// supervise waits for the process and publishes its exit status
func (p *Process) supervise(onExit func(*Process)) {
	err := p.cmd.Wait()
	p.stdout.flush()
	p.stderr.flush()

	status := exitStatusFrom(err, p.cmd.ProcessState)
	status.Lifetime = time.Since(p.startedAt)

	p.metrics.ProcessExited(p.id, status.Reason, status.Lifetime)

	p.mu.Lock()
	p.status = status
	p.exited = true
	handlers := p.handlers
	p.handlers = nil
	p.mu.Unlock()

	close(p.done)

	p.logger.Info("process exited",
		"pid", p.cmd.Process.Pid,
		"status", status.String(),
		"lifetime", status.Lifetime)

	if onExit != nil {
		onExit(p)
	}
	for _, fn := range handlers {
		fn(status)
	}
}

func exitStatusFrom(err error, state *os.ProcessState) ExitStatus {
	if state == nil {
		return ExitStatus{Reason: ExitReasonError, Code: -1, Err: err}
	}

	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return ExitStatus{
			Reason: ExitReasonSignaled,
			Code:   -1,
			Signal: ws.Signal().String(),
			Err:    err,
		}
	}

	if errors.Is(err, exec.ErrWaitDelay) {
		// Exited cleanly but left its output pipes open
		err = nil
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return ExitStatus{Reason: ExitReasonError, Code: state.ExitCode(), Err: err}
	}

	if state.ExitCode() == 0 {
		return ExitStatus{Reason: ExitReasonExited}
	}
	return ExitStatus{Reason: ExitReasonFailed, Code: state.ExitCode(), Err: err}
}
