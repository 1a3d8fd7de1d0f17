// Package procmgr launches child processes, forwards their output and
// reports how they exit.
package procmgr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
)

// ErrAlreadyRunning is returned when spawning an id that has a live process
var ErrAlreadyRunning = errors.New("process already running")

// ProcessManager manages 0 or more concurrent child processes
type ProcessManager struct {
	mu        sync.Mutex
	processes map[ProcessID]*Process

	logger      *slog.Logger
	sink        OutputSink
	gracePeriod time.Duration
	metrics     MetricsCollector
}

// NewProcessManager creates a new process manager
func NewProcessManager(opts ...Option) *ProcessManager {
	pm := &ProcessManager{
		processes:   make(map[ProcessID]*Process),
		logger:      slog.Default(),
		gracePeriod: 10 * time.Second,
		metrics:     NewNoopMetricsCollector(),
	}

	for _, opt := range opts {
		opt(pm)
	}

	if pm.sink == nil {
		pm.sink = LogSink{Logger: pm.logger}
	}
	pm.logger = pm.logger.With("component", "procmgr")

	return pm
}

// Spawn starts the process described by spec. The process runs
// independently of ctx; ctx only guards the launch itself.
func (pm *ProcessManager) Spawn(ctx context.Context, spec Spec) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if spec.ID == "" {
		return nil, hosterr.ErrInvalidArgument("id", spec.ID, "process id must not be empty")
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if existing, ok := pm.processes[spec.ID]; ok && existing.Alive() {
		return nil, fmt.Errorf("spawn %s: %w (pid %d)", spec.ID, ErrAlreadyRunning, existing.PID())
	}

	logger := pm.logger.With("process_id", string(spec.ID))

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Dir = spec.Dir
	// Bound the wait for output copying if a grandchild keeps the pipes open
	cmd.WaitDelay = time.Second

	stdout := &lineWriter{id: spec.ID, stream: StreamStdout, sink: pm.sink}
	stderr := &lineWriter{id: spec.ID, stream: StreamStderr, sink: pm.sink}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		pm.metrics.ProcessStartFailed(spec.ID)
		return nil, hosterr.ErrProcessStartFailed(string(spec.ID), err)
	}

	p := &Process{
		id:        spec.ID,
		spec:      spec,
		cmd:       cmd,
		startedAt: time.Now(),
		logger:    logger.With("pid", cmd.Process.Pid),
		metrics:   pm.metrics,
		grace:     pm.gracePeriod,
		stdout:    stdout,
		stderr:    stderr,
		done:      make(chan struct{}),
	}
	pm.processes[spec.ID] = p
	pm.metrics.ProcessStarted(spec.ID)
	pm.metrics.RunningProcesses(len(pm.processes))

	logger.Info("launched process",
		"path", spec.Path,
		"args", spec.Args,
		"pid", cmd.Process.Pid)

	go p.supervise(pm.forget)

	return p, nil
}

// forget drops a finished process from the registry
func (pm *ProcessManager) forget(p *Process) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.processes[p.id] == p {
		delete(pm.processes, p.id)
	}
	pm.metrics.RunningProcesses(len(pm.processes))
}

// Get returns the live process registered under id
func (pm *ProcessManager) Get(id ProcessID) (*Process, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p, ok := pm.processes[id]
	return p, ok
}

// List returns the ids of all live processes, sorted
func (pm *ProcessManager) List() []ProcessID {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	ids := make([]ProcessID, 0, len(pm.processes))
	for id := range pm.processes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// TerminateAll terminates every live process concurrently and waits for
// them to exit or for ctx to be done.
func (pm *ProcessManager) TerminateAll(ctx context.Context) error {
	pm.mu.Lock()
	procs := make([]*Process, 0, len(pm.processes))
	for _, p := range pm.processes {
		procs = append(procs, p)
	}
	pm.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, p := range procs {
		wg.Add(1)
		go func(p *Process) {
			defer wg.Done()
			if err := p.Terminate(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("terminate %s: %w", p.id, err))
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	return errors.Join(errs...)
}
