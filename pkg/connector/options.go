package connector

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

// Option configures a Connector
type Option func(*Connector)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Connector) {
		c.logger = logger
	}
}

// WithManifestSource sets where the field manifest comes from. The default
// asks the game process over GetManifest.
func WithManifestSource(src ManifestSource) Option {
	return func(c *Connector) {
		c.source = src
	}
}

// WithDialOptions appends gRPC dial options. Transport credentials default
// to insecure because game processes are local children.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Connector) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(mc MetricsCollector) Option {
	return func(c *Connector) {
		c.metrics = mc
	}
}

// WithTracer sets the tracer used for Connect spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Connector) {
		c.tracer = tracer
	}
}

// WithSessionID overrides the generated session id
func WithSessionID(id string) Option {
	return func(c *Connector) {
		c.sessionID = id
	}
}
