package instance

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/connector"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/procmgr"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/syncpb"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/testing/gameproc"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/tree"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

const fovManifest = `
type: client
fields:
  - key: fov
    path: /camera/fov
    type: int32
    default: "90"
`

// recordingSink collects process output lines
type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Line(id procmgr.ProcessID, stream procmgr.Stream, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, string(id)+"/"+string(stream)+": "+line)
}

func (s *recordingSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

type harness struct {
	root    *tree.Root
	m       *Manager
	server  *gameproc.Server
	store   *MemoryStore
	sink    *recordingSink
	metrics *PrometheusMetricsCollector
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// newHarness builds a manager whose client executable prints its argument
// and sleeps, and whose connectors reach an in-memory game process.
func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	m, err := connector.ParseManifest([]byte(fovManifest), "test")
	require.NoError(t, err)

	srv := gameproc.NewServer(m)
	ep := srv.Listen()
	t.Cleanup(ep.Stop)

	cfg := DefaultConfig()
	cfg.Executables[TypeClient] = writeScript(t, `echo "started $1"; exec sleep 60`)
	cfg.StopGracePeriod = 2 * time.Second
	cfg.SnapshotInterval = 20 * time.Millisecond

	h := &harness{
		root:    tree.NewRoot(),
		server:  srv,
		store:   NewMemoryStore(),
		sink:    &recordingSink{},
		metrics: NewPrometheusMetricsCollector(""),
	}

	logger := slog.New(slog.DiscardHandler)
	base := []Option{
		WithLogger(logger),
		WithStore(h.store),
		WithOutputSink(h.sink),
		WithMetrics(h.metrics),
		WithConnectorOptions(
			connector.WithDialOptions(ep.Dialer()),
			connector.WithLogger(logger),
		),
	}
	h.m, err = New(h.root, cfg, append(base, opts...)...)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = h.m.Shutdown(ctx)
	})
	return h
}

func (h *harness) started(t *testing.T, id string) *tree.Node {
	t.Helper()
	node, err := h.m.Create(id, TypeClient, "client "+id, "", false, false)
	require.NoError(t, err)
	require.NoError(t, h.m.Start(context.Background(), node))
	return node
}

func (h *harness) running(t *testing.T, id string) *tree.Node {
	t.Helper()
	node := h.started(t, id)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	_, err := h.m.Connect(ctx, node)
	require.NoError(t, err)
	require.Eventually(t, h.server.Introduced, waitFor, tick)
	return node
}

func (h *harness) waitState(t *testing.T, node *tree.Node, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.m.State(node) == want }, waitFor, tick,
		"instance %s never reached %s (now %s)", node.Name(), want, h.m.State(node))
}

func TestInstanceLifecycleScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	node, err := h.m.Create("7", TypeClient, "seven", "scenario", false, false)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, h.m.State(node))
	assert.Equal(t, "/instances/7", node.Path())

	require.NoError(t, h.m.Start(ctx, node))
	assert.Equal(t, StateStarted, h.m.State(node))
	pid, ok := node.GetChild(ChildPID).Get().(int64)
	require.True(t, ok)
	assert.Greater(t, pid, int64(0))
	assert.Same(t, h.m.Process(node), node.GetChild(ChildProcess).Get())

	subtree, err := h.m.Connect(ctx, node)
	require.NoError(t, err)
	assert.Same(t, node, subtree)
	assert.Equal(t, StateRunning, h.m.State(node))
	assert.Same(t, h.m.Connector(node), node.GetChild(ChildConnector).Get())

	fov := h.root.FindNode("/instances/7/camera/fov")
	require.NotNil(t, fov)
	assert.Equal(t, int32(90), fov.Get())

	var (
		mu    sync.Mutex
		syncs []any
	)
	fov.On(tree.EventSync, func(ev tree.Event) {
		mu.Lock()
		defer mu.Unlock()
		syncs = append(syncs, ev.New)
	})
	syncEvents := func() []any {
		mu.Lock()
		defer mu.Unlock()
		return append([]any(nil), syncs...)
	}

	// Inbound: applied without a sync event
	require.Eventually(t, h.server.Introduced, waitFor, tick)
	require.NoError(t, h.server.Push("fov", 100))
	require.Eventually(t, func() bool { return fov.Get() == int32(100) }, waitFor, tick)
	assert.Empty(t, syncEvents())

	// Local: sync event carrying the new value, forwarded to the process
	require.NoError(t, fov.Set(120))
	assert.Equal(t, []any{int32(120)}, syncEvents())
	require.Eventually(t, func() bool { return len(h.server.Values("fov")) == 1 }, waitFor, tick)

	// Killing the process brings the instance back to stopped
	require.NoError(t, h.m.Process(node).Kill())
	h.waitState(t, node, StateStopped)
	assert.Nil(t, node.GetChild(ChildPID))
	assert.Nil(t, node.GetChild(ChildProcess))
	assert.Nil(t, node.GetChild(ChildConnector))
	assert.Nil(t, h.m.Connector(node))
	assert.Nil(t, h.m.Process(node))

	assert.Contains(t, h.sink.Lines(), "7/stdout: started 7")
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Create("", TypeClient, "", "", false, false)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidArgument))

	_, err = h.m.Create("a/b", TypeClient, "", "", false, false)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidName))

	_, err = h.m.Create("x", "spectator", "", "", false, false)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidArgument))

	_, err = h.m.Create("x", TypeServer, "", "", false, false)
	require.NoError(t, err)
	_, err = h.m.Create("x", TypeClient, "", "", false, false)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInstanceExists))

	assert.Equal(t, []string{"x"}, h.m.IDs())
}

func TestCreateBuildsCanonicalSubtree(t *testing.T) {
	h := newHarness(t)

	node, err := h.m.Create("31417", TypeServer, "my server", "a server", false, true)
	require.NoError(t, err)

	assert.Equal(t, []string{ChildState, ChildType, ChildName, ChildDescription, ChildPort, ChildAutostart},
		node.GetChildNames())
	assert.Equal(t, "stopped", node.GetChild(ChildState).Get())
	assert.Equal(t, TypeServer, node.GetChild(ChildType).Get())
	assert.Equal(t, int32(31417), node.GetChild(ChildPort).Get())
	assert.Equal(t, true, node.GetChild(ChildAutostart).Get())
	assert.True(t, node.GetChild(ChildType).ReadOnly())
	assert.False(t, node.GetChild(ChildState).SyncEnabled())

	got, err := h.m.Get("31417")
	require.NoError(t, err)
	assert.Same(t, node, got)

	_, err = h.m.Get("missing")
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInstanceNotFound))

	assert.Equal(t, Descriptor{
		ID:          "31417",
		Type:        TypeServer,
		Name:        "my server",
		Description: "a server",
		Port:        31417,
		Autostart:   true,
	}, h.m.Descriptor(node))
}

func TestCreateAllocatesPorts(t *testing.T) {
	h := newHarness(t)

	alpha, err := h.m.Create("alpha", TypeClient, "", "", false, false)
	require.NoError(t, err)
	beta, err := h.m.Create("beta", TypeClient, "", "", false, false)
	require.NoError(t, err)

	base := int32(DefaultConfig().BasePort)
	assert.Equal(t, base, alpha.GetChild(ChildPort).Get())
	assert.Equal(t, base+1, beta.GetChild(ChildPort).Get())
}

func TestCreatePersistentSaves(t *testing.T) {
	h := newHarness(t)

	_, err := h.m.Create("temp", TypeClient, "", "", false, false)
	require.NoError(t, err)
	assert.Zero(t, h.store.Saves())

	_, err = h.m.Create("kept", TypeClient, "kept", "", true, true)
	require.NoError(t, err)
	assert.Equal(t, 1, h.store.Saves())

	saved, err := h.store.Load()
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "kept", saved[0].ID)
	assert.True(t, saved[0].Autostart)
}

func TestStartExecutableNotFound(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	server, err := h.m.Create("srv", TypeServer, "", "", false, false)
	require.NoError(t, err)
	err = h.m.Start(ctx, server)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeExecutableNotFound))
	assert.Equal(t, StateStopped, h.m.State(server))

	h.m.cfg.Executables[TypeServer] = filepath.Join(t.TempDir(), "missing")
	err = h.m.Start(ctx, server)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeExecutableNotFound))
	assert.Nil(t, server.GetChild(ChildPID))
}

func TestStartRequiresStopped(t *testing.T) {
	h := newHarness(t)
	node := h.started(t, "1")

	err := h.m.Start(context.Background(), node)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidTransition))
	assert.Equal(t, StateStarted, h.m.State(node))
}

func TestStopWaitsForStopped(t *testing.T) {
	h := newHarness(t)
	node := h.started(t, "1")
	ctx := context.Background()

	require.NoError(t, h.m.Stop(ctx, node))
	assert.Equal(t, StateStopped, h.m.State(node))
	assert.Nil(t, node.GetChild(ChildPID))

	err := h.m.Stop(ctx, node)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeProcessNotRunning))

	// A stopped instance can be started again
	require.NoError(t, h.m.Start(ctx, node))
	assert.Equal(t, StateStarted, h.m.State(node))
}

func TestStopRunningInstance(t *testing.T) {
	h := newHarness(t)
	node := h.running(t, "1")

	require.NoError(t, h.m.Stop(context.Background(), node))
	assert.Equal(t, StateStopped, h.m.State(node))
	require.Eventually(t, func() bool { return !h.server.Connected() }, waitFor, tick)
}

func TestProcessExitBeforeConnect(t *testing.T) {
	h := newHarness(t)
	h.m.cfg.Executables[TypeClient] = writeScript(t, `exit 3`)

	node, err := h.m.Create("1", TypeClient, "", "", false, false)
	require.NoError(t, err)
	require.NoError(t, h.m.Start(context.Background(), node))

	h.waitState(t, node, StateStopped)

	expected := `
# HELP instance_process_exits_total Instances stopped because their process exited
# TYPE instance_process_exits_total counter
instance_process_exits_total{instance_id="1",reason="Failed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(h.metrics.Registry(), strings.NewReader(expected),
		"instance_process_exits_total"))
}

func TestCrashWhilePaused(t *testing.T) {
	h := newHarness(t)
	node := h.running(t, "1")

	require.NoError(t, h.m.Pause(node))
	require.NoError(t, h.m.Process(node).Kill())

	h.waitState(t, node, StateStopped)
	assert.Nil(t, h.m.Connector(node))
}

func TestConnectRequiresStarted(t *testing.T) {
	h := newHarness(t)

	node, err := h.m.Create("1", TypeClient, "", "", false, false)
	require.NoError(t, err)

	_, err = h.m.Connect(context.Background(), node)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidTransition))
	assert.Equal(t, StateStopped, h.m.State(node))
}

func TestConnectFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)

	node, err := h.m.Create("1", TypeServer, "", "", false, false)
	require.NoError(t, err)
	h.m.cfg.Executables[TypeServer] = h.m.cfg.Executables[TypeClient]
	require.NoError(t, h.m.Start(context.Background(), node))

	_, err = h.m.Connect(context.Background(), node)
	require.Error(t, err)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeSchemaNotFound))
	assert.Equal(t, StateStarted, h.m.State(node))
	assert.Nil(t, node.GetChild(ChildConnector))
	assert.Nil(t, h.m.Connector(node))
}

func TestConnectWrapsConnectorErrors(t *testing.T) {
	failing := connector.ManifestSourceFunc(func(context.Context, string, syncpb.TreeSyncClient) (*connector.Manifest, error) {
		return nil, context.DeadlineExceeded
	})
	h := newHarness(t, WithConnectorOptions(connector.WithManifestSource(failing)))
	node := h.started(t, "1")

	_, err := h.m.Connect(context.Background(), node)
	require.Error(t, err)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeConnectionFailed))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateStarted, h.m.State(node))
}

func TestConnectionLossReturnsToStarted(t *testing.T) {
	h := newHarness(t)
	node := h.running(t, "1")

	h.server.CloseStream()

	h.waitState(t, node, StateStarted)
	assert.Nil(t, node.GetChild(ChildConnector))
	assert.Nil(t, h.m.Connector(node))

	// The instance can be connected again and reuses its fields
	h.server.Reset()
	_, err := h.m.Connect(context.Background(), node)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, h.m.State(node))
	assert.Equal(t, 2, h.server.Sessions())
}

func TestDisconnect(t *testing.T) {
	h := newHarness(t)
	node := h.running(t, "1")
	c := h.m.Connector(node)

	require.NoError(t, h.m.Disconnect(node))
	assert.Equal(t, StateStarted, h.m.State(node))
	assert.Equal(t, connector.StateDisconnected, c.State())
	assert.Nil(t, node.GetChild(ChildConnector))
	require.Eventually(t, func() bool { return !h.server.Connected() }, waitFor, tick)

	err := h.m.Disconnect(node)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidTransition))
}

func TestPauseResume(t *testing.T) {
	h := newHarness(t)
	node := h.running(t, "1")

	require.NoError(t, h.m.Pause(node))
	assert.Equal(t, StatePaused, h.m.State(node))

	err := h.m.Pause(node)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidTransition))
	err = h.m.Disconnect(node)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidTransition))

	require.NoError(t, h.m.Resume(node))
	assert.Equal(t, StateRunning, h.m.State(node))

	err = h.m.Resume(node)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidTransition))
}

func TestStopPausedInstance(t *testing.T) {
	h := newHarness(t)
	node := h.running(t, "1")
	require.NoError(t, h.m.Pause(node))

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, h.m.Stop(ctx, node))
	assert.Equal(t, StateStopped, h.m.State(node))
}

// trapTerm swaps the client executable for one that exits 0 on SIGTERM
func trapTerm(h *harness, t *testing.T) {
	h.m.cfg.Executables[TypeClient] = writeScript(t, `trap 'exit 0' TERM; while true; do sleep 0.05; done`)
}

func TestShutdownPausedInstance(t *testing.T) {
	h := newHarness(t)
	trapTerm(h, t)
	node := h.running(t, "1")
	proc := h.m.Process(node)
	require.NoError(t, h.m.Pause(node))

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	began := time.Now()
	require.NoError(t, h.m.Shutdown(ctx))

	assert.Equal(t, StateStopped, h.m.State(node))
	assert.Less(t, time.Since(began), time.Second)
	assert.Equal(t, procmgr.ExitReasonExited, proc.ExitStatus().Reason, proc.ExitStatus().String())
}

func TestConnectionLossWhilePaused(t *testing.T) {
	h := newHarness(t)
	trapTerm(h, t)
	node := h.running(t, "1")
	proc := h.m.Process(node)
	require.NoError(t, h.m.Pause(node))

	h.server.CloseStream()
	h.waitState(t, node, StateStarted)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	began := time.Now()
	require.NoError(t, h.m.Stop(ctx, node))

	assert.Equal(t, StateStopped, h.m.State(node))
	assert.Less(t, time.Since(began), time.Second)
	assert.Equal(t, procmgr.ExitReasonExited, proc.ExitStatus().Reason, proc.ExitStatus().String())
}

func TestGameProcessCannotWriteLifecycleLeaves(t *testing.T) {
	h := newHarness(t)
	m, err := connector.ParseManifest([]byte(`
type: client
fields:
  - key: st
    path: /state
    type: string
  - key: fov
    path: /camera/fov
    type: int32
    default: "90"
`), "test")
	require.NoError(t, err)
	h.server.SetManifest(TypeClient, m)

	node := h.running(t, "1")
	fov := h.root.FindNode("/instances/1/camera/fov")
	require.NotNil(t, fov)

	require.NoError(t, h.server.Push("st", "bogus"))
	require.NoError(t, h.server.Push("fov", 100))
	require.Eventually(t, func() bool { return fov.Get() == int32(100) }, waitFor, tick)
	assert.Equal(t, StateRunning, h.m.State(node))

	// Crash recovery still reaches stopped
	require.NoError(t, h.m.Process(node).Kill())
	h.waitState(t, node, StateStopped)
	require.NoError(t, h.m.Start(context.Background(), node))
}

func TestDestroy(t *testing.T) {
	h := newHarness(t)

	node, err := h.m.Create("gone", TypeClient, "", "", true, false)
	require.NoError(t, err)
	require.NoError(t, h.m.Start(context.Background(), node))

	err = h.m.Destroy(node)
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidTransition))

	require.NoError(t, h.m.Stop(context.Background(), node))
	require.NoError(t, h.m.Destroy(node))

	assert.Equal(t, StateNull, h.m.State(node))
	assert.False(t, h.root.Contains("/instances/gone"))
	assert.Empty(t, h.m.IDs())

	saved, err := h.store.Load()
	require.NoError(t, err)
	assert.Empty(t, saved)

	// The id is free again
	_, err = h.m.Create("gone", TypeClient, "", "", false, false)
	require.NoError(t, err)
}

func TestStartAllStopAll(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a, err := h.m.Create("a", TypeClient, "", "", false, false)
	require.NoError(t, err)
	b, err := h.m.Create("b", TypeClient, "", "", false, false)
	require.NoError(t, err)
	srv, err := h.m.Create("srv", TypeServer, "", "", false, false)
	require.NoError(t, err)

	err = h.m.StartAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start srv")
	assert.Equal(t, StateStarted, h.m.State(a))
	assert.Equal(t, StateStarted, h.m.State(b))
	assert.Equal(t, StateStopped, h.m.State(srv))

	require.NoError(t, h.m.StopAll(ctx))
	assert.Equal(t, StateStopped, h.m.State(a))
	assert.Equal(t, StateStopped, h.m.State(b))
}

func TestLoadInstances(t *testing.T) {
	store := NewMemoryStore(
		Descriptor{ID: "31416", Type: TypeClient, Name: "auto", Autostart: true},
		Descriptor{ID: "manual", Type: TypeClient, Name: "manual", Port: 4000},
		Descriptor{ID: "broken", Type: "spectator"},
	)
	h := newHarness(t, WithStore(store))

	err := h.m.LoadInstances(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load instance broken")

	assert.Equal(t, []string{"31416", "manual"}, h.m.IDs())

	auto, err := h.m.Get("31416")
	require.NoError(t, err)
	assert.Equal(t, StateStarted, h.m.State(auto))

	manual, err := h.m.Get("manual")
	require.NoError(t, err)
	assert.Equal(t, StateStopped, h.m.State(manual))
	assert.Equal(t, int32(4000), manual.GetChild(ChildPort).Get())

	// Loading does not write the list back
	assert.Zero(t, store.Saves())

	require.NoError(t, h.m.SaveInstances())
	saved, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestRunSnapshots(t *testing.T) {
	h := newHarness(t)

	node, err := h.m.Create("1", TypeClient, "before", "", true, false)
	require.NoError(t, err)
	require.Equal(t, 1, h.store.Saves())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.m.RunSnapshots(ctx) }()

	// Unchanged lists are not rewritten
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, h.store.Saves())

	require.NoError(t, node.GetChild(ChildName).Set("after"))
	require.Eventually(t, func() bool { return h.store.Saves() == 2 }, waitFor, tick)

	saved, err := h.store.Load()
	require.NoError(t, err)
	assert.Equal(t, "after", saved[0].Name)

	cancel()
	require.NoError(t, <-errCh)
}

func TestRunSnapshotsRequiresInterval(t *testing.T) {
	h := newHarness(t)
	h.m.cfg.SnapshotInterval = 0

	err := h.m.RunSnapshots(context.Background())
	assert.True(t, hosterr.IsErrorCode(err, hosterr.ErrorCodeInvalidArgument))
}

func TestShutdown(t *testing.T) {
	h := newHarness(t)
	running := h.running(t, "1")
	started := h.started(t, "2")

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, h.m.Shutdown(ctx))

	assert.Equal(t, StateStopped, h.m.State(running))
	assert.Equal(t, StateStopped, h.m.State(started))
	assert.False(t, h.server.Connected())
}

func TestTransitionMetrics(t *testing.T) {
	h := newHarness(t)
	node := h.started(t, "1")

	assert.False(t, h.m.Transist(node, StateStopped, StateStarted))

	expected := `
# HELP instance_transitions_total Applied lifecycle transitions
# TYPE instance_transitions_total counter
instance_transitions_total{instance_id="1",transition="create"} 1
instance_transitions_total{instance_id="1",transition="start"} 1
# HELP instance_transitions_rejected_total Refused lifecycle transitions
# TYPE instance_transitions_rejected_total counter
instance_transitions_rejected_total{from="stopped",instance_id="1",to="started"} 1
# HELP instance_instances Number of instances by state
# TYPE instance_instances gauge
instance_instances{state="paused"} 0
instance_instances{state="running"} 0
instance_instances{state="started"} 1
instance_instances{state="stopped"} 0
`
	require.NoError(t, testutil.GatherAndCompare(h.metrics.Registry(), strings.NewReader(expected),
		"instance_transitions_total", "instance_transitions_rejected_total", "instance_instances"))
}
