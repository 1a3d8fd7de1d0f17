// Package gameproc provides an in-process stand-in for a game process: a
// TreeSync server that serves manifests, records every envelope the
// supervisor sends and can push values back on demand.
package gameproc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/connector"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/syncpb"
)

const bufSize = 1 << 20

// ErrNoSession is returned by Push when no Synchronize stream is open
var ErrNoSession = errors.New("no synchronize session")

// Server is a fake game process
type Server struct {
	syncpb.UnimplementedTreeSyncServer

	mu            sync.Mutex
	manifests     map[string]*connector.Manifest
	received      []*structpb.Struct
	sessions      []*session
	active        *session
	manifestCalls int
}

type session struct {
	stream syncpb.TreeSync_SynchronizeServer
	md     metadata.MD
	sendMu sync.Mutex
	closed chan struct{}
	once   sync.Once
}

func (s *session) close() {
	s.once.Do(func() { close(s.closed) })
}

// NewServer creates a server that serves the given manifests, keyed by
// their Type.
func NewServer(manifests ...*connector.Manifest) *Server {
	s := &Server{manifests: make(map[string]*connector.Manifest)}
	for _, m := range manifests {
		s.manifests[m.Type] = m
	}
	return s
}

// SetManifest serves m for instanceType
func (s *Server) SetManifest(instanceType string, m *connector.Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[instanceType] = m
}

// GetManifest implements syncpb.TreeSyncServer
func (s *Server) GetManifest(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	instanceType := syncpb.ManifestRequestType(req)

	s.mu.Lock()
	s.manifestCalls++
	m, ok := s.manifests[instanceType]
	s.mu.Unlock()

	if !ok {
		return nil, status.Errorf(codes.NotFound, "no manifest for instance type %q", instanceType)
	}
	return m.ToStruct()
}

// Synchronize implements syncpb.TreeSyncServer. The stream stays open until
// the client closes it, the server is stopped or CloseStream is called.
func (s *Server) Synchronize(stream syncpb.TreeSync_SynchronizeServer) error {
	md, _ := metadata.FromIncomingContext(stream.Context())
	sess := &session{stream: stream, md: md, closed: make(chan struct{})}

	s.mu.Lock()
	s.sessions = append(s.sessions, sess)
	s.active = sess
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.active == sess {
			s.active = nil
		}
		s.mu.Unlock()
	}()

	recvErr := make(chan error, 1)
	go func() {
		for {
			msg, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			s.mu.Lock()
			s.received = append(s.received, msg)
			s.mu.Unlock()
		}
	}()

	select {
	case <-sess.closed:
		return nil
	case err := <-recvErr:
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	case <-stream.Context().Done():
		return stream.Context().Err()
	}
}

// Push sends {key: value} on the active stream
func (s *Server) Push(key string, value any) error {
	msg, err := syncpb.NewEnvelope(key, value)
	if err != nil {
		return err
	}
	return s.PushRaw(msg)
}

// PushRaw sends msg unchanged on the active stream
func (s *Server) PushRaw(msg *structpb.Struct) error {
	s.mu.Lock()
	sess := s.active
	s.mu.Unlock()
	if sess == nil {
		return ErrNoSession
	}

	sess.sendMu.Lock()
	defer sess.sendMu.Unlock()
	return sess.stream.Send(msg)
}

// CloseStream ends the active Synchronize call as if the game process had
// hung up.
func (s *Server) CloseStream() {
	s.mu.Lock()
	sess := s.active
	s.mu.Unlock()
	if sess != nil {
		sess.close()
	}
}

// Connected reports whether a Synchronize stream is open
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Sessions returns how many Synchronize streams were opened
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ManifestCalls returns how often GetManifest was called
func (s *Server) ManifestCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifestCalls
}

// Metadata returns the metadata of the most recent stream
func (s *Server) Metadata() metadata.MD {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) == 0 {
		return nil
	}
	return s.sessions[len(s.sessions)-1].md
}

// Received returns a copy of every envelope received so far
func (s *Server) Received() []*structpb.Struct {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*structpb.Struct, len(s.received))
	copy(out, s.received)
	return out
}

// Values returns the decoded values received for key, oldest first
func (s *Server) Values(key string) []any {
	var out []any
	for _, msg := range s.Received() {
		k, v, err := syncpb.SplitEnvelope(msg)
		if err == nil && k == key {
			out = append(out, v)
		}
	}
	return out
}

// Introduced reports whether the supervisor sent the handshake envelope
func (s *Server) Introduced() bool {
	return len(s.Values(syncpb.IntroductionFinishedKey)) > 0
}

// Reset forgets received envelopes
func (s *Server) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = nil
}

// Endpoint is a running gRPC server hosting a Server
type Endpoint struct {
	grpc   *grpc.Server
	health *health.Server
	lis    net.Listener
	buf    *bufconn.Listener
	done   chan error
}

// Listen serves s over an in-memory bufconn listener. Use Dialer to reach it.
func (s *Server) Listen() *Endpoint {
	buf := bufconn.Listen(bufSize)
	ep := s.serve(buf)
	ep.buf = buf
	return ep
}

// ListenTCP serves s on addr, e.g. "127.0.0.1:0"
func (s *Server) ListenTCP(addr string) (*Endpoint, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.serve(lis), nil
}

func (s *Server) serve(lis net.Listener) *Endpoint {
	ep := &Endpoint{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		lis:    lis,
		done:   make(chan error, 1),
	}
	syncpb.RegisterTreeSyncServer(ep.grpc, s)
	healthpb.RegisterHealthServer(ep.grpc, ep.health)
	ep.health.SetServingStatus(syncpb.TreeSync_ServiceDesc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() { ep.done <- ep.grpc.Serve(lis) }()
	return ep
}

// Addr returns the listener address
func (e *Endpoint) Addr() net.Addr { return e.lis.Addr() }

// Port returns the TCP port, or 0 for bufconn endpoints
func (e *Endpoint) Port() int {
	if tcp, ok := e.lis.Addr().(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}

// Dialer returns a dial option that routes every connection to this
// endpoint, whatever address the client dials.
func (e *Endpoint) Dialer() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		if e.buf == nil {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", e.lis.Addr().String())
		}
		return e.buf.DialContext(ctx)
	})
}

// Stop stops the server immediately, failing open streams
func (e *Endpoint) Stop() {
	e.health.Shutdown()
	e.grpc.Stop()
	<-e.done
}
