// Package connector mirrors the synchronized state of one game process into
// its instance subtree and back over a bidirectional TreeSync stream.
//
// Connect loads the field manifest for the instance type, opens the
// Synchronize stream, creates one leaf per GLOBAL_VAR_MODIFIED field and then
// keeps both sides in step:
//
//   - every sync event of a leaf under the instance subtree is written to
//     the stream as {externalKey: value};
//   - every inbound {externalKey: value} is applied to the matching leaf with
//     tree.PreventSync so it is not echoed back.
//
// When the stream ends the Connector disconnects itself and emits
// EventDisconnected. It never changes instance state; that is left to the
// owner of the Connector.
package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/syncpb"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/tree"
)

const tracerName = "github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/connector"

// State is the lifecycle state of a Connector
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is a local connector event
type Event int

const (
	EventConnected Event = iota
	EventDisconnected
)

// ErrNotIdle is returned by Connect on a connector that was already used
var ErrNotIdle = errors.New("connector is not idle")

// Connector bridges one instance subtree to its game process
type Connector struct {
	subtree      *tree.Node
	root         *tree.Root
	instanceID   string
	instanceType string
	address      string
	sessionID    string

	logger   *slog.Logger
	source   ManifestSource
	dialOpts []grpc.DialOption
	metrics  MetricsCollector
	tracer   trace.Tracer
	dropLog  *rate.Limiter

	mu       sync.Mutex
	state    State
	attempt  int
	conn     *grpc.ClientConn
	cancel   context.CancelFunc
	manifest *Manifest
	unsubs   []tree.Unsubscriber
	wired    map[*tree.Node]struct{}
	done     chan struct{}

	sendMu sync.Mutex
	stream syncpb.TreeSync_SynchronizeClient

	handlersMu sync.Mutex
	handlers   map[Event][]*func()
}

// New creates a connector for the instance subtree rooted at subtree, whose
// game process serves TreeSync on host:port.
func New(subtree *tree.Node, instanceType, host string, port int, opts ...Option) *Connector {
	c := &Connector{
		subtree:      subtree,
		root:         subtree.Root(),
		instanceID:   subtree.Name(),
		instanceType: instanceType,
		address:      net.JoinHostPort(host, strconv.Itoa(port)),
		sessionID:    uuid.NewString(),
		logger:       slog.Default(),
		source:       NewRemoteManifestSource(),
		metrics:      NewNoopMetricsCollector(),
		tracer:       otel.Tracer(tracerName),
		dropLog:      rate.NewLimiter(rate.Every(time.Second), 10),
		wired:        make(map[*tree.Node]struct{}),
		done:         make(chan struct{}),
		handlers:     make(map[Event][]*func()),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With(
		"component", "connector",
		"instance", c.instanceID,
		"session", c.sessionID)

	return c
}

// InstanceID returns the id of the connected instance
func (c *Connector) InstanceID() string { return c.instanceID }

// Address returns host:port of the game process endpoint
func (c *Connector) Address() string { return c.address }

// SessionID identifies this connection in logs and gRPC metadata
func (c *Connector) SessionID() string { return c.sessionID }

// Subtree returns the instance subtree
func (c *Connector) Subtree() *tree.Node { return c.subtree }

// Done is closed when the connector disconnects
func (c *Connector) Done() <-chan struct{} { return c.done }

// State returns the current lifecycle state
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Manifest returns the manifest in use, or nil before Connect
func (c *Connector) Manifest() *Manifest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manifest
}

// On registers fn for a local event. Handlers run synchronously on the
// goroutine that caused the event.
func (c *Connector) On(ev Event, fn func()) tree.Unsubscriber {
	entry := &fn

	c.handlersMu.Lock()
	c.handlers[ev] = append(c.handlers[ev], entry)
	c.handlersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.handlersMu.Lock()
			defer c.handlersMu.Unlock()

			list := c.handlers[ev]
			for i, e := range list {
				if e == entry {
					c.handlers[ev] = append(list[:i:i], list[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Connector) emit(ev Event) {
	c.handlersMu.Lock()
	list := make([]*func(), len(c.handlers[ev]))
	copy(list, c.handlers[ev])
	c.handlersMu.Unlock()

	for _, fn := range list {
		(*fn)()
	}
}

// Connect opens the synchronization channel and populates the subtree. It
// returns the instance subtree once the handshake has been sent. The wait
// for the channel to become ready is bounded only by ctx.
func (c *Connector) Connect(ctx context.Context) (node *tree.Node, err error) {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("connect %s: %w (state %s)", c.instanceID, ErrNotIdle, state)
	}
	c.state = StateConnecting
	c.attempt++
	attempt := c.attempt
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "connector.Connect", trace.WithAttributes(
		attribute.String("instance.id", c.instanceID),
		attribute.String("instance.type", c.instanceType),
		attribute.String("rpc.address", c.address),
		attribute.String("session.id", c.sessionID),
	))
	start := time.Now()
	defer func() {
		c.metrics.ConnectDuration(c.instanceID, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	node, err = c.connect(ctx, attempt)
	if err != nil {
		c.abort()
		return nil, err
	}
	return node, nil
}

func (c *Connector) connect(ctx context.Context, attempt int) (*tree.Node, error) {
	ctx = metadata.AppendToOutgoingContext(ctx,
		syncpb.SessionMetadataKey, c.sessionID,
		syncpb.InstanceMetadataKey, c.instanceID)

	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, c.dialOpts...)

	// Game processes are local children, so skip name resolution
	conn, err := grpc.NewClient("passthrough:///"+c.address, dialOpts...)
	if err != nil {
		return nil, hosterr.ErrConnectionFailed(c.instanceID, c.address, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	client := syncpb.NewTreeSyncClient(conn)

	// 1. Field manifest
	manifest, err := c.source.Manifest(ctx, c.instanceType, client)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.manifest = manifest
	c.mu.Unlock()

	// 2. Stream, once the channel is ready
	if err := waitReady(ctx, conn); err != nil {
		return nil, hosterr.ErrConnectionFailed(c.instanceID, c.address, err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	streamCtx = metadata.AppendToOutgoingContext(streamCtx,
		syncpb.SessionMetadataKey, c.sessionID,
		syncpb.InstanceMetadataKey, c.instanceID)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	stream, err := client.Synchronize(streamCtx)
	if err != nil {
		return nil, hosterr.ErrConnectionFailed(c.instanceID, c.address, err)
	}
	c.sendMu.Lock()
	c.stream = stream
	c.sendMu.Unlock()

	// 3. Inbound handler
	go c.receive(stream, manifest, attempt)

	// 4. Outbound bridge, including leaves left over from an earlier connection
	unsub := c.subtree.On(tree.EventAdd, func(ev tree.Event) { c.wire(ev.Node) })
	c.mu.Lock()
	c.unsubs = append(c.unsubs, unsub)
	c.mu.Unlock()
	c.subtree.Walk(func(n *tree.Node) bool {
		c.wire(n)
		return true
	})

	// 5. Populate
	c.populate(manifest)

	// 6. Handshake
	if err := c.sendMessage(syncpb.IntroductionFinished()); err != nil {
		return nil, hosterr.ErrConnectionFailed(c.instanceID, c.address, err)
	}

	// 7. Connected
	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		return nil, hosterr.ErrConnectionFailed(c.instanceID, c.address, errors.New("stream closed during connect"))
	}
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Info("connected",
		"address", c.address,
		"manifest", manifest.Source(),
		"fields", len(manifest.Synchronized()))
	c.emit(EventConnected)

	return c.subtree, nil
}

// waitReady blocks until conn is READY, fails on SHUTDOWN, or returns
// ctx.Err().
func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("client connection shut down")
		case connectivity.Idle:
			conn.Connect()
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

func (c *Connector) populate(m *Manifest) {
	for _, f := range m.Fields {
		if f.Event != GlobalVarModified {
			c.logger.Debug("skipping field", "key", f.Key, "event", string(f.Event))
			continue
		}

		path := c.subtree.Path() + f.Path
		n, err := c.root.CreateRecursive(path, f.Type, f.Default, true, false, f.Key)
		if err != nil {
			c.logger.Warn("failed to create field", "key", f.Key, "path", path, "error", err)
			continue
		}
		if !ownsField(n, f) {
			// The path belongs to a node the game process does not own
			c.logger.Warn("field path is taken by another node",
				"key", f.Key,
				"path", path,
				"owner_key", n.ExternalKey(),
				"synchronized", n.SyncEnabled())
		}
	}
}

// ownsField reports whether n was created for field f, i.e. inbound values
// for f may be written to it
func ownsField(n *tree.Node, f Field) bool {
	return !n.IsContainer() && n.SyncEnabled() && n.ExternalKey() == f.Key
}

// wire subscribes a synchronized leaf for outbound sync
func (c *Connector) wire(n *tree.Node) {
	if n.IsContainer() || !n.SyncEnabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateConnecting && c.state != StateConnected {
		return
	}
	if _, ok := c.wired[n]; ok {
		return
	}
	c.wired[n] = struct{}{}
	c.unsubs = append(c.unsubs, n.On(tree.EventSync, func(ev tree.Event) {
		c.forward(ev.Node, ev.New)
	}))
}

// externalKey resolves the wire key of a leaf
func (c *Connector) externalKey(n *tree.Node) string {
	if k := n.ExternalKey(); k != "" {
		return k
	}
	c.mu.Lock()
	m := c.manifest
	c.mu.Unlock()
	if m == nil {
		return ""
	}
	if f, ok := m.FieldByPath(strings.TrimPrefix(n.Path(), c.subtree.Path())); ok {
		return f.Key
	}
	return ""
}

// forward writes a local value change to the stream
func (c *Connector) forward(n *tree.Node, value any) {
	key := c.externalKey(n)
	if key == "" {
		c.drop(DropNoExternalKey, "no external key for synchronized node", "path", n.Path())
		return
	}

	msg, err := syncpb.NewEnvelope(key, wireValue(value))
	if err != nil {
		c.drop(DropEncode, "failed to encode value", "key", key, "error", err)
		return
	}
	if err := c.sendMessage(msg); err != nil {
		c.drop(DropSendFailed, "failed to send value", "key", key, "error", err)
		return
	}
	c.metrics.MessageSent(c.instanceID)
}

// wireValue converts tree values into structpb-compatible values
func wireValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano)
	default:
		return v
	}
}

func (c *Connector) sendMessage(msg *structpb.Struct) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.stream == nil {
		return errors.New("not connected")
	}
	return c.stream.Send(msg)
}

func (c *Connector) receive(stream syncpb.TreeSync_SynchronizeClient, m *Manifest, attempt int) {
	for {
		msg, err := stream.Recv()
		if err != nil {
			c.streamEnded(attempt, err)
			return
		}
		c.apply(m, msg)
	}
}

// apply handles one inbound envelope. Failures drop the message only.
func (c *Connector) apply(m *Manifest, msg *structpb.Struct) {
	key, value, err := syncpb.SplitEnvelope(msg)
	if err != nil {
		c.drop(DropMalformed, "malformed message", "error", err)
		return
	}
	if key == syncpb.IntroductionFinishedKey {
		c.logger.Debug("game process finished its introduction")
		return
	}

	f, ok := m.Lookup(key)
	if !ok {
		c.drop(DropUnknownKey, "unknown key", "key", key)
		return
	}
	if f.Event != GlobalVarModified {
		c.drop(DropUnsupported, "unsupported event classification", "key", key, "event", string(f.Event))
		return
	}

	path := c.subtree.Path() + f.Path
	n := c.root.FindNode(path)
	if n == nil {
		c.drop(DropMissingNode, "no node for key", "key", key, "path", path)
		return
	}
	if !ownsField(n, f) {
		c.drop(DropForeignNode, "node is not owned by the game process", "key", key, "path", path)
		return
	}
	if err := n.Set(value, tree.PreventSync); err != nil {
		c.drop(DropConversion, "failed to apply value", "key", key, "error", err)
		return
	}
	c.metrics.MessageReceived(c.instanceID)
}

// drop records a discarded message; logging is rate limited
func (c *Connector) drop(reason, msg string, args ...any) {
	c.metrics.MessageDropped(c.instanceID, reason)
	if c.dropLog.Allow() {
		c.logger.Warn(msg, append(args, "reason", reason)...)
	}
}

func (c *Connector) streamEnded(attempt int, err error) {
	switch {
	case errors.Is(err, io.EOF):
		c.logger.Info("game process closed the stream")
	case status.Code(err) == codes.Canceled:
		c.logger.Debug("stream cancelled")
	default:
		c.logger.Warn("stream failed", "error", err, "code", status.Code(err).String())
	}
	c.disconnect(attempt)
}

// Disconnect closes the stream and the client connection, unsubscribes from
// the tree and emits EventDisconnected. It is safe to call more than once.
func (c *Connector) Disconnect() {
	c.disconnect(0)
}

// disconnect tears down the connection made by the given Connect attempt,
// or the current one if attempt is 0.
func (c *Connector) disconnect(attempt int) {
	c.mu.Lock()
	if c.state != StateConnected && c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	if attempt != 0 && attempt != c.attempt {
		// A stream from an aborted attempt ended late
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	unsubs := c.release()
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	close(c.done)

	c.metrics.Disconnected(c.instanceID)
	c.logger.Info("disconnected")
	c.emit(EventDisconnected)
}

// abort rolls back a failed Connect without emitting EventDisconnected
func (c *Connector) abort() {
	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnect already released everything
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	unsubs := c.release()
	c.wired = make(map[*tree.Node]struct{})
	c.manifest = nil
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

// release closes the transport and returns the pending unsubscribers.
// c.mu must be held.
func (c *Connector) release() []tree.Unsubscriber {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug("close client connection", "error", err)
		}
		c.conn = nil
	}

	c.sendMu.Lock()
	c.stream = nil
	c.sendMu.Unlock()

	unsubs := c.unsubs
	c.unsubs = nil
	return unsubs
}
