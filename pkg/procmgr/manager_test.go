package procmgr

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
)

// writeScript writes an executable shell script into a temp dir
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// recordingSink collects output lines
type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Line(id ProcessID, stream Stream, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, string(id)+"/"+string(stream)+": "+line)
}

func (s *recordingSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func TestSpawnPassesArgsAndForwardsOutput(t *testing.T) {
	sink := &recordingSink{}
	pm := NewProcessManager(WithOutputSink(sink))

	script := writeScript(t, `echo "hello $1"; echo "oops" >&2; printf "partial"`)
	p, err := pm.Spawn(context.Background(), Spec{ID: "7", Path: script, Args: []string{"7"}})
	require.NoError(t, err)
	assert.Greater(t, p.PID(), 0)

	status, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Clean())
	assert.Equal(t, 0, status.Code)

	assert.ElementsMatch(t, []string{
		"7/stdout: hello 7",
		"7/stderr: oops",
		"7/stdout: partial",
	}, sink.Lines())
}

func TestSpawnEnvAndDir(t *testing.T) {
	sink := &recordingSink{}
	pm := NewProcessManager(WithOutputSink(sink))

	dir := t.TempDir()
	script := writeScript(t, `echo "$INEXOR_TEST_VAR"; pwd`)
	p, err := pm.Spawn(context.Background(), Spec{
		ID:   "env",
		Path: script,
		Env:  []string{"INEXOR_TEST_VAR=set"},
		Dir:  dir,
	})
	require.NoError(t, err)
	<-p.Done()

	lines := sink.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "env/stdout: set", lines[0])
	assert.Contains(t, lines[1], filepath.Base(dir))
}

func TestSpawnFailure(t *testing.T) {
	pm := NewProcessManager()

	_, err := pm.Spawn(context.Background(), Spec{ID: "x", Path: filepath.Join(t.TempDir(), "missing")})
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeProcessStartFailed))

	_, err = pm.Spawn(context.Background(), Spec{Path: "/bin/true"})
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidArgument))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pm.Spawn(ctx, Spec{ID: "x", Path: "/bin/true"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpawnRejectsDuplicateLiveID(t *testing.T) {
	pm := NewProcessManager()
	script := writeScript(t, "exec sleep 30")

	p, err := pm.Spawn(context.Background(), Spec{ID: "7", Path: script})
	require.NoError(t, err)
	defer p.Kill()

	_, err = pm.Spawn(context.Background(), Spec{ID: "7", Path: script})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestNonZeroExit(t *testing.T) {
	pm := NewProcessManager()
	p, err := pm.Spawn(context.Background(), Spec{ID: "f", Path: writeScript(t, "exit 3")})
	require.NoError(t, err)

	status, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitReasonFailed, status.Reason)
	assert.Equal(t, 3, status.Code)
	assert.False(t, status.Clean())
	assert.Equal(t, "exit status 3", status.String())
}

func TestKillReportsSignal(t *testing.T) {
	pm := NewProcessManager()
	p, err := pm.Spawn(context.Background(), Spec{ID: "k", Path: writeScript(t, "exec sleep 30")})
	require.NoError(t, err)
	assert.True(t, p.Alive())

	require.NoError(t, p.Kill())

	status, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitReasonSignaled, status.Reason)
	assert.Equal(t, "killed", status.Signal)
	assert.False(t, p.Alive())

	err = p.Signal(os.Interrupt)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeProcessNotRunning))
}

func TestTerminateGraceful(t *testing.T) {
	pm := NewProcessManager(WithGracePeriod(5 * time.Second))
	p, err := pm.Spawn(context.Background(), Spec{ID: "t", Path: writeScript(t, "exec sleep 30")})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, p.Terminate(context.Background()))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, "terminated", p.ExitStatus().Signal)
}

func TestTerminateKillsAfterGracePeriod(t *testing.T) {
	pm := NewProcessManager(WithGracePeriod(200 * time.Millisecond))
	script := writeScript(t, `trap '' TERM
while true; do sleep 0.05; done`)
	p, err := pm.Spawn(context.Background(), Spec{ID: "stubborn", Path: script})
	require.NoError(t, err)

	// Give the shell time to install the trap
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, p.Terminate(context.Background()))
	assert.False(t, p.Alive())
	assert.Equal(t, "killed", p.ExitStatus().Signal)

	// Terminating an exited process is a no-op
	require.NoError(t, p.Terminate(context.Background()))
}

func TestOnExitHandlers(t *testing.T) {
	pm := NewProcessManager()
	p, err := pm.Spawn(context.Background(), Spec{ID: "h", Path: writeScript(t, "exit 0")})
	require.NoError(t, err)

	got := make(chan ExitStatus, 1)
	p.OnExit(func(s ExitStatus) { got <- s })

	select {
	case s := <-got:
		assert.True(t, s.Clean())
	case <-time.After(5 * time.Second):
		t.Fatal("exit handler not called")
	}

	late := false
	p.OnExit(func(ExitStatus) { late = true })
	assert.True(t, late)
}

func TestRegistryForgetsExitedProcesses(t *testing.T) {
	pm := NewProcessManager()
	a, err := pm.Spawn(context.Background(), Spec{ID: "a", Path: writeScript(t, "exec sleep 30")})
	require.NoError(t, err)
	b, err := pm.Spawn(context.Background(), Spec{ID: "b", Path: writeScript(t, "exec sleep 30")})
	require.NoError(t, err)

	assert.Equal(t, []ProcessID{"a", "b"}, pm.List())
	got, ok := pm.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)

	require.NoError(t, a.Kill())
	require.Eventually(t, func() bool {
		_, ok := pm.Get("a")
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []ProcessID{"b"}, pm.List())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pm.TerminateAll(ctx))
	assert.False(t, b.Alive())
	require.Eventually(t, func() bool { return len(pm.List()) == 0 }, 5*time.Second, 10*time.Millisecond)
}
