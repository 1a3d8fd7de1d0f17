// Package instance supervises game instances. Each instance lives in the
// tree at /instances/<id> and its "state" leaf follows a fixed lifecycle:
//
//	null --create--> stopped --start--> started --connect--> running
//	running --pause--> paused --resume--> running
//	running --disconnect--> started --stop--> stopped --destroy--> null
//
// Transist is the only writer of the state leaf. When the process of an
// instance dies the manager walks the instance back to stopped, whatever
// state it was in.
package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/connector"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/procmgr"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/tree"
)

const tracerName = "github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/instance"

// InstancesPath is the container holding one subtree per instance
const InstancesPath = "/instances"

// Children of an instance subtree
const (
	ChildState       = "state"
	ChildType        = "type"
	ChildName        = "name"
	ChildDescription = "description"
	ChildPort        = "port"
	ChildAutostart   = "autostart"
	ChildPID         = "pid"
	ChildProcess     = "process"
	ChildConnector   = "connector"
)

// runtime is the live, non-persistent side of an instance
type runtime struct {
	proc       *procmgr.Process
	exited     chan struct{}
	conn       *connector.Connector
	unsubConn  tree.Unsubscriber
	connecting bool
}

// Manager owns the instance subtrees, their processes and connectors
type Manager struct {
	root      *tree.Root
	instances *tree.Node
	cfg       Config

	logger       *slog.Logger
	store        Store
	metrics      MetricsCollector
	tracer       trace.Tracer
	procs        *procmgr.ProcessManager
	sink         procmgr.OutputSink
	newConnector ConnectorFactory
	connOpts     []connector.Option

	// stateMu makes the check and the write of a transition atomic
	stateMu sync.Mutex

	mu         sync.Mutex
	runtime    map[string]*runtime
	persistent map[string]bool

	dirty atomic.Bool
}

// New creates a manager keeping its instances under /instances of root
func New(root *tree.Root, cfg Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		root:       root,
		cfg:        cfg,
		logger:     slog.Default(),
		store:      NewMemoryStore(),
		metrics:    NewNoopMetricsCollector(),
		tracer:     otel.Tracer(tracerName),
		runtime:    make(map[string]*runtime),
		persistent: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(m)
	}

	base := m.logger
	m.logger = base.With("component", "instance")

	if m.procs == nil {
		popts := []procmgr.Option{procmgr.WithLogger(base)}
		if cfg.StopGracePeriod > 0 {
			popts = append(popts, procmgr.WithGracePeriod(cfg.StopGracePeriod))
		}
		if m.sink != nil {
			popts = append(popts, procmgr.WithOutputSink(m.sink))
		}
		m.procs = procmgr.NewProcessManager(popts...)
	}

	if m.newConnector == nil {
		m.newConnector = func(subtree *tree.Node, instanceType, host string, port int) *connector.Connector {
			copts := append([]connector.Option{connector.WithLogger(base)}, m.connOpts...)
			return connector.New(subtree, instanceType, host, port, copts...)
		}
	}

	instances, err := root.CreateRecursive(InstancesPath, tree.DatatypeNode, nil, false, false, "")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", InstancesPath, err)
	}
	m.instances = instances

	return m, nil
}

// Root returns the tree the manager writes to
func (m *Manager) Root() *tree.Root { return m.root }

// Get returns the subtree of instance id
func (m *Manager) Get(id string) (*tree.Node, error) {
	node := m.instances.GetChild(id)
	if node == nil {
		return nil, hosterr.ErrInstanceNotFound(id)
	}
	return node, nil
}

// IDs returns the instance ids in creation order
func (m *Manager) IDs() []string {
	return m.instances.GetChildNames()
}

// State returns the lifecycle state of an instance subtree. Nodes without a
// state leaf are null.
func (m *Manager) State(node *tree.Node) State {
	if node == nil {
		return StateNull
	}
	s, _ := childValue(node, ChildState).(string)
	if s == "" {
		return StateNull
	}
	return State(s)
}

// Process returns the running process of an instance, or nil
func (m *Manager) Process(node *tree.Node) *procmgr.Process {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt := m.runtime[node.Name()]; rt != nil {
		return rt.proc
	}
	return nil
}

// Connector returns the connector of a connected instance, or nil
func (m *Manager) Connector(node *tree.Node) *connector.Connector {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rt := m.runtime[node.Name()]; rt != nil {
		return rt.conn
	}
	return nil
}

// Transist moves node from one state to another. It returns false, and
// changes nothing, if either state is unknown, the instance is not in from
// or the pair is not in the transition table.
//
// Observers of the state leaf run while the transition lock is held and
// must not call Transist themselves.
func (m *Manager) Transist(node *tree.Node, from, to State) bool {
	if node == nil {
		return false
	}
	id := node.Name()

	m.stateMu.Lock()
	t, err := m.checkTransition(node, from, to)
	if err == nil {
		err = node.GetChild(ChildState).Set(string(to))
	}
	m.stateMu.Unlock()

	if err != nil {
		m.logger.Warn("transition rejected",
			"instance", id,
			"from", string(from),
			"to", string(to),
			"error", err)
		m.metrics.TransitionRejected(id, from, to)
		return false
	}

	m.logger.Info("transition",
		"instance", id,
		"transition", t.Name,
		"from", string(from),
		"to", string(to))
	m.metrics.TransitionApplied(id, t)
	m.recordCounts()
	return true
}

func (m *Manager) checkTransition(node *tree.Node, from, to State) (Transition, error) {
	id := node.Name()
	if !from.Valid() || !to.Valid() {
		return Transition{}, invalidTransition(id, from, to).WithCause(errors.New("unknown state"))
	}
	if node.GetChild(ChildState) == nil {
		return Transition{}, invalidTransition(id, from, to).WithCause(errors.New("node is not an instance"))
	}
	if current := m.State(node); current != from {
		return Transition{}, invalidTransition(id, from, to).WithContext("current", string(current))
	}
	t, ok := LookupTransition(from, to)
	if !ok {
		return Transition{}, invalidTransition(id, from, to)
	}
	return t, nil
}

func invalidTransition(id string, from, to State) *hosterr.Error {
	return hosterr.ErrInvalidTransition(id, string(from), string(to))
}

// forceStopped walks an instance back to stopped after its process died.
// Steps that do not apply are skipped.
func (m *Manager) forceStopped(node *tree.Node) {
	steps := [][2]State{
		{StatePaused, StateRunning},
		{StateRunning, StateStarted},
		{StateStarted, StateStopped},
	}
	for _, step := range steps {
		if m.State(node) == step[0] {
			m.Transist(node, step[0], step[1])
		}
	}
}

func (m *Manager) recordCounts() {
	counts := make(map[State]int)
	for _, node := range m.instances.Children() {
		counts[m.State(node)]++
	}
	m.metrics.Instances(counts)
}

// Create adds instance id in state stopped. Persistent instances are
// written to the store; if that fails the instance still exists and the
// error is returned with it.
func (m *Manager) Create(id, instanceType, name, description string, persistent, autostart bool) (*tree.Node, error) {
	return m.create(Descriptor{
		ID:          id,
		Type:        instanceType,
		Name:        name,
		Description: description,
		Autostart:   autostart,
	}, persistent, persistent)
}

func (m *Manager) create(d Descriptor, persistent, save bool) (*tree.Node, error) {
	if d.ID == "" {
		return nil, hosterr.ErrInvalidArgument("id", d.ID, "instance id must not be empty")
	}
	if !tree.ValidName(d.ID) {
		return nil, hosterr.ErrInvalidName(d.ID)
	}
	if d.Type != TypeClient && d.Type != TypeServer {
		return nil, hosterr.ErrInvalidArgument("type", d.Type, "instance type must be client or server")
	}
	if d.Port < 0 || d.Port > 65535 {
		return nil, hosterr.ErrInvalidArgument("port", d.Port, "port must be between 1 and 65535")
	}

	m.mu.Lock()
	if m.instances.HasChild(d.ID) {
		m.mu.Unlock()
		return nil, hosterr.ErrInstanceExists(d.ID)
	}
	if d.Port == 0 {
		d.Port = m.allocatePort(d.ID)
	}
	node, err := m.instances.AddNode(d.ID)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("create instance %s: %w", d.ID, err)
	}
	m.runtime[d.ID] = &runtime{}
	if persistent {
		m.persistent[d.ID] = true
	}
	m.mu.Unlock()

	children := []struct {
		name     string
		datatype tree.Datatype
		value    any
		readOnly bool
	}{
		{ChildState, tree.DatatypeString, string(StateNull), false},
		{ChildType, tree.DatatypeString, d.Type, true},
		{ChildName, tree.DatatypeString, d.Name, false},
		{ChildDescription, tree.DatatypeString, d.Description, false},
		{ChildPort, tree.DatatypeInt32, d.Port, false},
		{ChildAutostart, tree.DatatypeBool, d.Autostart, false},
	}
	for _, c := range children {
		child, err := node.AddChild(c.name, c.datatype, c.value, false, c.readOnly)
		if err != nil {
			m.forget(d.ID)
			return nil, fmt.Errorf("create instance %s: %w", d.ID, err)
		}
		if c.name != ChildState && c.name != ChildType {
			child.On(tree.EventPostSet, func(tree.Event) { m.dirty.Store(true) })
		}
	}

	m.Transist(node, StateNull, StateStopped)
	m.logger.Info("created instance",
		"instance", d.ID,
		"type", d.Type,
		"port", d.Port,
		"persistent", persistent)

	if persistent {
		m.dirty.Store(true)
		if save {
			if err := m.SaveInstances(); err != nil {
				return node, err
			}
		}
	}
	return node, nil
}

// forget removes the subtree and the runtime record of an instance
func (m *Manager) forget(id string) {
	m.instances.RemoveChild(id)
	m.mu.Lock()
	delete(m.runtime, id)
	delete(m.persistent, id)
	m.mu.Unlock()
}

// allocatePort uses the id itself when it is a port number, as game
// processes derive their RPC port from it. Otherwise the first free port
// from BasePort is taken. m.mu must be held.
func (m *Manager) allocatePort(id string) int {
	if p, err := strconv.Atoi(id); err == nil && p > 0 && p <= 65535 {
		return p
	}

	used := make(map[int]bool)
	for _, node := range m.instances.Children() {
		if p, ok := childValue(node, ChildPort).(int32); ok {
			used[int(p)] = true
		}
	}
	port := m.cfg.BasePort
	for used[port] {
		port++
	}
	return port
}

// Destroy removes a stopped instance
func (m *Manager) Destroy(node *tree.Node) error {
	id := node.Name()
	if s := m.State(node); s != StateStopped {
		return invalidTransition(id, s, StateNull)
	}
	if !m.Transist(node, StateStopped, StateNull) {
		return invalidTransition(id, m.State(node), StateNull)
	}

	m.mu.Lock()
	persistent := m.persistent[id]
	m.mu.Unlock()
	m.forget(id)
	m.recordCounts()

	m.logger.Info("destroyed instance", "instance", id)
	if persistent {
		return m.SaveInstances()
	}
	return nil
}

// Start spawns the game process of a stopped instance as
// "<executable> <id>". When the process exits the instance returns to
// stopped on its own.
func (m *Manager) Start(ctx context.Context, node *tree.Node) (err error) {
	id := node.Name()
	ctx, span := m.startSpan(ctx, "instance.Start", id)
	defer func() { endSpan(span, err) }()

	if s := m.State(node); s != StateStopped {
		return invalidTransition(id, s, StateStarted)
	}
	rt, err := m.runtimeOf(id)
	if err != nil {
		return err
	}

	instanceType, _ := childValue(node, ChildType).(string)
	path, err := m.executable(instanceType)
	if err != nil {
		return err
	}

	proc, err := m.procs.Spawn(ctx, procmgr.Spec{
		ID:   procmgr.ProcessID(id),
		Path: path,
		Args: []string{id},
		Dir:  m.cfg.WorkDir,
	})
	if err != nil {
		return err
	}

	exited := make(chan struct{})
	m.mu.Lock()
	rt.proc = proc
	rt.exited = exited
	m.mu.Unlock()

	if err := m.put(node, ChildPID, tree.DatatypeInt64, int64(proc.PID())); err != nil {
		m.logger.Warn("failed to store pid", "instance", id, "error", err)
	}
	if err := m.put(node, ChildProcess, tree.DatatypeObject, proc); err != nil {
		m.logger.Warn("failed to store process", "instance", id, "error", err)
	}

	started := m.Transist(node, StateStopped, StateStarted)

	// Registered after the transition so an early exit still ends in stopped
	proc.OnExit(func(st procmgr.ExitStatus) {
		m.processExited(node, proc, st)
	})

	if !started {
		if err := proc.Kill(); err != nil {
			m.logger.Warn("failed to kill orphaned process", "instance", id, "error", err)
		}
		return invalidTransition(id, m.State(node), StateStarted)
	}
	span.SetAttributes(attribute.Int("process.pid", proc.PID()))
	return nil
}

func (m *Manager) executable(instanceType string) (string, error) {
	path := m.cfg.Executables[instanceType]
	if path == "" {
		return "", hosterr.ErrExecutableNotFound(instanceType, "")
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", hosterr.ErrExecutableNotFound(instanceType, path).WithCause(err)
	}
	return resolved, nil
}

// processExited runs once per process, on its supervising goroutine
func (m *Manager) processExited(node *tree.Node, proc *procmgr.Process, st procmgr.ExitStatus) {
	id := node.Name()

	m.mu.Lock()
	rt := m.runtime[id]
	if rt == nil || rt.proc != proc {
		m.mu.Unlock()
		return
	}
	exited := rt.exited
	conn := m.detachLocked(rt)
	rt.proc = nil
	rt.exited = nil
	m.mu.Unlock()

	if conn != nil {
		conn.Disconnect()
	}
	node.RemoveChild(ChildConnector)
	node.RemoveChild(ChildProcess)
	node.RemoveChild(ChildPID)

	if st.Clean() {
		m.logger.Info("instance process exited", "instance", id, "status", st.String())
	} else {
		m.logger.Warn("instance process died", "instance", id, "status", st.String())
	}
	m.metrics.ProcessExited(id, st.Reason.String())

	m.forceStopped(node)
	close(exited)
}

// Stop terminates the process of an instance and waits until the instance
// is stopped or ctx is done.
func (m *Manager) Stop(ctx context.Context, node *tree.Node) (err error) {
	id := node.Name()
	ctx, span := m.startSpan(ctx, "instance.Stop", id)
	defer func() { endSpan(span, err) }()

	m.mu.Lock()
	var proc *procmgr.Process
	var exited chan struct{}
	if rt := m.runtime[id]; rt != nil {
		proc, exited = rt.proc, rt.exited
	}
	m.mu.Unlock()

	if proc == nil {
		return hosterr.ErrProcessNotRunning(id)
	}

	// A stopped process would only see SIGTERM once continued
	if pauseSupported && m.State(node) == StatePaused {
		if err := resumeProcess(proc); err != nil {
			m.logger.Debug("failed to continue paused process", "instance", id, "error", err)
		}
	}

	if err := proc.Terminate(ctx); err != nil {
		return fmt.Errorf("stop %s: %w", id, err)
	}

	select {
	case <-exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect builds a connector for a started instance, connects it and moves
// the instance to running. On failure the state is left unchanged.
func (m *Manager) Connect(ctx context.Context, node *tree.Node) (subtree *tree.Node, err error) {
	id := node.Name()
	ctx, span := m.startSpan(ctx, "instance.Connect", id)
	defer func() { endSpan(span, err) }()

	if s := m.State(node); s != StateStarted {
		return nil, invalidTransition(id, s, StateRunning)
	}

	m.mu.Lock()
	rt := m.runtime[id]
	switch {
	case rt == nil:
		m.mu.Unlock()
		return nil, hosterr.ErrInstanceNotFound(id)
	case rt.proc == nil:
		m.mu.Unlock()
		return nil, hosterr.ErrProcessNotRunning(id)
	case rt.connecting || rt.conn != nil:
		m.mu.Unlock()
		return nil, invalidTransition(id, StateStarted, StateRunning).
			WithCause(errors.New("connect already in progress"))
	}
	rt.connecting = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		rt.connecting = false
		m.mu.Unlock()
	}()

	instanceType, _ := childValue(node, ChildType).(string)
	port, _ := childValue(node, ChildPort).(int32)

	c := m.newConnector(node, instanceType, m.cfg.Host, int(port))
	if err := m.put(node, ChildConnector, tree.DatatypeObject, c); err != nil {
		return nil, hosterr.ErrConnectionFailed(id, c.Address(), err)
	}

	subtree, err = c.Connect(ctx)
	if err != nil {
		node.RemoveChild(ChildConnector)
		if hosterr.GetErrorCode(err) == "" {
			err = hosterr.ErrConnectionFailed(id, c.Address(), err)
		}
		return nil, err
	}

	if !m.Transist(node, StateStarted, StateRunning) {
		c.Disconnect()
		node.RemoveChild(ChildConnector)
		return nil, invalidTransition(id, m.State(node), StateRunning)
	}

	m.mu.Lock()
	if rt.proc == nil {
		// The process died while connecting
		m.mu.Unlock()
		c.Disconnect()
		node.RemoveChild(ChildConnector)
		return nil, hosterr.ErrProcessNotRunning(id)
	}
	rt.conn = c
	rt.unsubConn = c.On(connector.EventDisconnected, func() { m.connectionLost(node, c) })
	m.mu.Unlock()

	// The stream may have ended before the handler was registered
	if c.State() == connector.StateDisconnected {
		m.connectionLost(node, c)
	}

	span.SetAttributes(attribute.String("session.id", c.SessionID()))
	return subtree, nil
}

// detachLocked takes the connector off rt and unsubscribes from it. m.mu
// must be held.
func (m *Manager) detachLocked(rt *runtime) *connector.Connector {
	conn := rt.conn
	if rt.unsubConn != nil {
		rt.unsubConn()
	}
	rt.conn = nil
	rt.unsubConn = nil
	return conn
}

// connectionLost handles a connector that disconnected on its own
func (m *Manager) connectionLost(node *tree.Node, c *connector.Connector) {
	id := node.Name()

	m.mu.Lock()
	rt := m.runtime[id]
	if rt == nil || rt.conn != c {
		m.mu.Unlock()
		return
	}
	m.detachLocked(rt)
	m.mu.Unlock()

	node.RemoveChild(ChildConnector)
	m.logger.Warn("lost connection to instance", "instance", id, "session", c.SessionID())

	m.unpause(node)
	m.Transist(node, StateRunning, StateStarted)
}

// unpause continues the process of a paused instance and moves it back to
// running. It does nothing for instances that are not paused.
func (m *Manager) unpause(node *tree.Node) {
	if m.State(node) != StatePaused {
		return
	}
	if proc := m.Process(node); pauseSupported && proc != nil {
		if err := resumeProcess(proc); err != nil {
			m.logger.Debug("failed to continue paused process", "instance", node.Name(), "error", err)
		}
	}
	m.Transist(node, StatePaused, StateRunning)
}

// Disconnect closes the connector of a running instance and moves it back
// to started.
func (m *Manager) Disconnect(node *tree.Node) error {
	id := node.Name()
	if s := m.State(node); s != StateRunning {
		return invalidTransition(id, s, StateStarted)
	}

	m.mu.Lock()
	var c *connector.Connector
	if rt := m.runtime[id]; rt != nil {
		c = m.detachLocked(rt)
	}
	m.mu.Unlock()

	if c == nil {
		return invalidTransition(id, StateRunning, StateStarted).
			WithCause(errors.New("instance has no connector"))
	}

	c.Disconnect()
	node.RemoveChild(ChildConnector)

	if !m.Transist(node, StateRunning, StateStarted) {
		return invalidTransition(id, m.State(node), StateStarted)
	}
	return nil
}

// Pause suspends the process of a running instance (SIGSTOP) and moves it
// to paused. Where processes cannot be suspended only the state changes.
func (m *Manager) Pause(node *tree.Node) error {
	id := node.Name()
	if s := m.State(node); s != StateRunning {
		return invalidTransition(id, s, StatePaused)
	}

	proc := m.Process(node)
	if pauseSupported && proc != nil {
		if err := suspendProcess(proc); err != nil {
			return fmt.Errorf("pause %s: %w", id, err)
		}
	}

	if !m.Transist(node, StateRunning, StatePaused) {
		if pauseSupported && proc != nil {
			if err := resumeProcess(proc); err != nil {
				m.logger.Warn("failed to continue process", "instance", id, "error", err)
			}
		}
		return invalidTransition(id, m.State(node), StatePaused)
	}
	return nil
}

// Resume continues a paused instance (SIGCONT) and moves it to running
func (m *Manager) Resume(node *tree.Node) error {
	id := node.Name()
	if s := m.State(node); s != StatePaused {
		return invalidTransition(id, s, StateRunning)
	}

	proc := m.Process(node)
	if pauseSupported && proc != nil {
		if err := resumeProcess(proc); err != nil {
			return fmt.Errorf("resume %s: %w", id, err)
		}
	}

	if !m.Transist(node, StatePaused, StateRunning) {
		return invalidTransition(id, m.State(node), StateRunning)
	}
	return nil
}

// StartAll starts every stopped instance. Failures do not stop the fan-out
// and are returned together.
func (m *Manager) StartAll(ctx context.Context) error {
	var errs []error
	for _, node := range m.instances.Children() {
		if m.State(node) != StateStopped {
			continue
		}
		if err := m.Start(ctx, node); err != nil {
			errs = append(errs, fmt.Errorf("start %s: %w", node.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every instance with a process, concurrently. Failures are
// returned together.
func (m *Manager) StopAll(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, node := range m.instances.Children() {
		if m.Process(node) == nil {
			continue
		}
		wg.Add(1)
		go func(node *tree.Node) {
			defer wg.Done()
			if err := m.Stop(ctx, node); err != nil && !hosterr.IsErrorCode(err, hosterr.ErrorCodeProcessNotRunning) {
				mu.Lock()
				errs = append(errs, fmt.Errorf("stop %s: %w", node.Name(), err))
				mu.Unlock()
			}
		}(node)
	}

	wg.Wait()
	return errors.Join(errs...)
}

// Shutdown disconnects and stops every instance and saves pending changes
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error

	for _, node := range m.instances.Children() {
		m.mu.Lock()
		var c *connector.Connector
		if rt := m.runtime[node.Name()]; rt != nil {
			c = m.detachLocked(rt)
		}
		m.mu.Unlock()

		if c == nil {
			continue
		}
		c.Disconnect()
		node.RemoveChild(ChildConnector)
		m.unpause(node)
		m.Transist(node, StateRunning, StateStarted)
	}

	if err := m.StopAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if m.dirty.Load() {
		if err := m.SaveInstances(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Descriptor returns the persisted form of an instance
func (m *Manager) Descriptor(node *tree.Node) Descriptor {
	d := Descriptor{ID: node.Name()}
	d.Type, _ = childValue(node, ChildType).(string)
	d.Name, _ = childValue(node, ChildName).(string)
	d.Description, _ = childValue(node, ChildDescription).(string)
	if p, ok := childValue(node, ChildPort).(int32); ok {
		d.Port = int(p)
	}
	d.Autostart, _ = childValue(node, ChildAutostart).(bool)
	return d
}

// LoadInstances creates an instance per stored descriptor and starts those
// marked autostart. It keeps going past failures and returns them together.
func (m *Manager) LoadInstances(ctx context.Context) error {
	descriptors, err := m.store.Load()
	if err != nil {
		return err
	}

	var (
		errs      []error
		autostart []*tree.Node
	)
	for _, d := range descriptors {
		node, err := m.create(d, true, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("load instance %s: %w", d.ID, err))
			continue
		}
		if d.Autostart {
			autostart = append(autostart, node)
		}
	}
	m.dirty.Store(false)

	m.logger.Info("loaded instances",
		"count", len(descriptors)-len(errs),
		"autostart", len(autostart))

	for _, node := range autostart {
		if err := m.Start(ctx, node); err != nil {
			errs = append(errs, fmt.Errorf("autostart %s: %w", node.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SaveInstances writes the descriptors of all persistent instances
func (m *Manager) SaveInstances() error {
	m.mu.Lock()
	var descriptors []Descriptor
	for _, node := range m.instances.Children() {
		if m.persistent[node.Name()] {
			descriptors = append(descriptors, m.Descriptor(node))
		}
	}
	m.mu.Unlock()

	m.dirty.Store(false)
	start := time.Now()
	err := m.store.Save(descriptors)
	m.metrics.SnapshotSaved(time.Since(start), err)
	if err != nil {
		m.dirty.Store(true)
		return err
	}

	m.logger.Debug("saved instances", "count", len(descriptors))
	return nil
}

// RunSnapshots saves the instance list every SnapshotInterval while it has
// unsaved changes. It returns after a final save once ctx is done.
func (m *Manager) RunSnapshots(ctx context.Context) error {
	if m.cfg.SnapshotInterval <= 0 {
		return hosterr.ErrInvalidArgument("snapshot_interval", m.cfg.SnapshotInterval, "must be positive")
	}

	ticker := time.NewTicker(m.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if m.dirty.Load() {
				if err := m.SaveInstances(); err != nil {
					return err
				}
			}
			return nil
		case <-ticker.C:
			if !m.dirty.Load() {
				continue
			}
			if err := m.SaveInstances(); err != nil {
				m.logger.Error("snapshot failed", "error", err)
			}
		}
	}
}

func (m *Manager) runtimeOf(id string) (*runtime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.runtime[id]
	if !ok {
		return nil, hosterr.ErrInstanceNotFound(id)
	}
	return rt, nil
}

// put creates or overwrites a non-synchronized leaf
func (m *Manager) put(node *tree.Node, name string, datatype tree.Datatype, value any) error {
	child, err := node.AddChild(name, datatype, value, false, false)
	if err != nil {
		return err
	}
	return child.Set(value)
}

func childValue(node *tree.Node, name string) any {
	child := node.GetChild(name)
	if child == nil {
		return nil
	}
	return child.Get()
}

func (m *Manager) startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("instance.id", id)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()
}
