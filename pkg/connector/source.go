package connector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/procmgr"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/syncpb"
)

// ManifestSource supplies the field manifest for an instance type. client
// is the connection to the game process being connected.
type ManifestSource interface {
	Manifest(ctx context.Context, instanceType string, client syncpb.TreeSyncClient) (*Manifest, error)
}

// ManifestSourceFunc adapts a function to ManifestSource
type ManifestSourceFunc func(ctx context.Context, instanceType string, client syncpb.TreeSyncClient) (*Manifest, error)

// Manifest implements ManifestSource
func (f ManifestSourceFunc) Manifest(ctx context.Context, instanceType string, client syncpb.TreeSyncClient) (*Manifest, error) {
	return f(ctx, instanceType, client)
}

var manifestExtensions = []string{".yaml", ".yml", ".json"}

// FileManifestSource reads "<dir>/<type>.yaml" (or .yml, .json) and caches
// the parsed manifest for a while.
type FileManifestSource struct {
	dir   string
	cache *ttlcache.Cache[string, *Manifest]
}

// NewFileManifestSource creates a source rooted at dir. A ttl of zero
// disables caching.
func NewFileManifestSource(dir string, ttl time.Duration) *FileManifestSource {
	s := &FileManifestSource{dir: dir}
	if ttl > 0 {
		s.cache = ttlcache.New[string, *Manifest](
			ttlcache.WithTTL[string, *Manifest](ttl),
			ttlcache.WithDisableTouchOnHit[string, *Manifest](),
		)
	}
	return s
}

// Dir returns the manifest directory
func (s *FileManifestSource) Dir() string { return s.dir }

// Manifest implements ManifestSource
func (s *FileManifestSource) Manifest(ctx context.Context, instanceType string, _ syncpb.TreeSyncClient) (*Manifest, error) {
	if s.cache != nil {
		if item := s.cache.Get(instanceType); item != nil {
			return item.Value(), nil
		}
	}

	for _, ext := range manifestExtensions {
		path := filepath.Join(s.dir, instanceType+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		m, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		if m.Type != "" && m.Type != instanceType {
			return nil, hosterr.ErrInvalidManifest(path,
				fmt.Errorf("manifest declares type %q, expected %q", m.Type, instanceType))
		}

		if s.cache != nil {
			s.cache.Set(instanceType, m, ttlcache.DefaultTTL)
		}
		return m, nil
	}

	return nil, hosterr.ErrSchemaNotFound(instanceType, filepath.Join(s.dir, instanceType+".yaml"))
}

// Invalidate drops cached manifests so the next lookup rereads the files
func (s *FileManifestSource) Invalidate() {
	if s.cache != nil {
		s.cache.DeleteAll()
	}
}

// RemoteManifestSource asks the game process for its manifest via the
// GetManifest RPC. Unavailable errors are retried with exponential backoff
// because the process may still be starting its listener.
type RemoteManifestSource struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NewRemoteManifestSource creates a remote source with default retry settings
func NewRemoteManifestSource() *RemoteManifestSource {
	return &RemoteManifestSource{
		Attempts:  5,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  2 * time.Second,
	}
}

// Manifest implements ManifestSource
func (s *RemoteManifestSource) Manifest(ctx context.Context, instanceType string, client syncpb.TreeSyncClient) (*Manifest, error) {
	if client == nil {
		return nil, errors.New("remote manifest source requires a client")
	}

	source := hosterr.RPCSourcePrefix + syncpb.TreeSync_GetManifest_FullMethodName
	var m *Manifest
	err := procmgr.Retry(ctx, max(s.Attempts, 1), s.BaseDelay, s.MaxDelay, func(ctx context.Context) (bool, error) {
		resp, err := client.GetManifest(ctx, syncpb.NewManifestRequest(instanceType))
		if err != nil {
			switch status.Code(err) {
			case codes.Unavailable:
				return true, err
			case codes.NotFound, codes.Unimplemented:
				return false, hosterr.ErrSchemaNotFound(instanceType, source).WithCause(err)
			default:
				return false, fmt.Errorf("get manifest: %w", err)
			}
		}

		m, err = ManifestFromStruct(resp, source)
		return false, err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ChainManifestSource tries each source in order and returns the first
// manifest found. Only SCHEMA_NOT_FOUND falls through to the next source.
type ChainManifestSource []ManifestSource

// Manifest implements ManifestSource
func (c ChainManifestSource) Manifest(ctx context.Context, instanceType string, client syncpb.TreeSyncClient) (*Manifest, error) {
	var lastErr error = hosterr.ErrSchemaNotFound(instanceType, "no manifest sources configured")
	for _, src := range c {
		m, err := src.Manifest(ctx, instanceType, client)
		if err == nil {
			return m, nil
		}
		if !hosterr.IsErrorCode(err, hosterr.ErrorCodeSchemaNotFound) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
