package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
)

// Descriptor is the persisted form of an instance
type Descriptor struct {
	ID          string `toml:"-" json:"id"`
	Type        string `toml:"type" json:"type"`
	Name        string `toml:"name" json:"name"`
	Description string `toml:"description" json:"description"`
	Port        int    `toml:"port,omitempty" json:"port,omitempty"`
	Autostart   bool   `toml:"autostart" json:"autostart"`
}

// Store loads and saves the list of instance descriptors
type Store interface {
	Load() ([]Descriptor, error)
	Save([]Descriptor) error
}

// instancesFile is the layout of instances.toml:
//
//	[instances.31416]
//	type = "client"
//	name = "Local client"
//	description = ""
//	autostart = true
type instancesFile struct {
	Instances map[string]Descriptor `toml:"instances"`
}

// TOMLStore keeps descriptors in a TOML file
type TOMLStore struct {
	path string
	mu   sync.Mutex
}

// NewTOMLStore creates a store backed by path
func NewTOMLStore(path string) *TOMLStore {
	return &TOMLStore{path: path}
}

// Path returns the backing file
func (s *TOMLStore) Path() string { return s.path }

// Load reads the descriptors ordered by id. A missing file holds no
// instances.
func (s *TOMLStore) Load() ([]Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw instancesFile
	meta, err := toml.DecodeFile(s.path, &raw)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, hosterr.ErrPersistenceFailed(s.path, fmt.Errorf("load instances: %w", err))
	}

	ids := make([]string, 0, len(raw.Instances))
	for id := range raw.Instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		d := raw.Instances[id]
		d.ID = id
		if !meta.IsDefined("instances", id, "type") {
			return nil, hosterr.ErrPersistenceFailed(s.path,
				fmt.Errorf("load instances: instance %q has no type", id))
		}
		out = append(out, d)
	}
	return out, nil
}

// Save replaces the file with descriptors. The file is written to a
// temporary name first and renamed into place.
func (s *TOMLStore) Save(descriptors []Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := instancesFile{Instances: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		raw.Instances[d.ID] = d
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return hosterr.ErrPersistenceFailed(s.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return hosterr.ErrPersistenceFailed(s.path, err)
	}
	defer os.Remove(tmp.Name())

	if err := toml.NewEncoder(tmp).Encode(raw); err != nil {
		tmp.Close()
		return hosterr.ErrPersistenceFailed(s.path, fmt.Errorf("encode instances: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return hosterr.ErrPersistenceFailed(s.path, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return hosterr.ErrPersistenceFailed(s.path, err)
	}
	return nil
}

// MemoryStore keeps descriptors in memory
type MemoryStore struct {
	mu          sync.Mutex
	descriptors []Descriptor
	saves       int
}

// NewMemoryStore creates a store holding descriptors
func NewMemoryStore(descriptors ...Descriptor) *MemoryStore {
	return &MemoryStore{descriptors: descriptors}
}

// Load implements Store
func (s *MemoryStore) Load() ([]Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Descriptor, len(s.descriptors))
	copy(out, s.descriptors)
	return out, nil
}

// Save implements Store
func (s *MemoryStore) Save(descriptors []Descriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptors = make([]Descriptor, len(descriptors))
	copy(s.descriptors, descriptors)
	s.saves++
	return nil
}

// Saves returns how often Save was called
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

var (
	_ Store = (*TOMLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
