package connector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/syncpb"
	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/tree"
)

// Classification describes what an inbound message for a field means
type Classification string

const (
	// GlobalVarModified - the value of a global variable changed
	GlobalVarModified Classification = "GLOBAL_VAR_MODIFIED"
	FunctionEvent     Classification = "FUNCTION_EVENT"
	FunctionParam     Classification = "FUNCTION_PARAM"
	ListEventAdded    Classification = "LIST_EVENT_ADDED"
	ListEventModified Classification = "LIST_EVENT_MODIFIED"
	ListEventRemoved  Classification = "LIST_EVENT_REMOVED"
)

// Known reports whether c is one of the classifications the wire protocol defines
func (c Classification) Known() bool {
	switch c {
	case GlobalVarModified, FunctionEvent, FunctionParam,
		ListEventAdded, ListEventModified, ListEventRemoved:
		return true
	default:
		return false
	}
}

// Field describes one synchronizable value of a game process
type Field struct {
	// Key is the external name used on the wire
	Key string `yaml:"key" json:"key"`

	// Path is relative to the instance subtree, e.g. "/camera/fov"
	Path string `yaml:"path" json:"path"`

	// Type is the tree datatype of the value
	Type tree.Datatype `yaml:"type" json:"type"`

	// Default is the initial value; strings are coerced into Type
	Default any `yaml:"default,omitempty" json:"default,omitempty"`

	// ID is the numeric field id assigned by the game process
	ID int `yaml:"id,omitempty" json:"id,omitempty"`

	// Event defaults to GLOBAL_VAR_MODIFIED
	Event Classification `yaml:"event,omitempty" json:"event,omitempty"`
}

// Manifest is the field schema of one instance type
type Manifest struct {
	// Type is the instance type the manifest belongs to (optional)
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	Fields []Field `yaml:"fields" json:"fields"`

	source string
	byKey  map[string]int
	byPath map[string]int
}

// ParseManifest decodes a YAML or JSON manifest and validates it. source
// names the origin for error messages.
func ParseManifest(data []byte, source string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, hosterr.ErrInvalidManifest(source, fmt.Errorf("parse manifest: %w", err))
	}
	m.source = source

	if err := m.Validate(); err != nil {
		return nil, hosterr.ErrInvalidManifest(source, err)
	}
	return &m, nil
}

// LoadManifest loads a manifest from a YAML or JSON file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, hosterr.ErrSchemaNotFound(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve manifest path: %w", err)
	}
	return ParseManifest(data, absPath)
}

// ManifestFromStruct decodes a manifest received over GetManifest
func ManifestFromStruct(s *structpb.Struct, source string) (*Manifest, error) {
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, hosterr.ErrInvalidManifest(source, fmt.Errorf("encode manifest: %w", err))
	}
	return ParseManifest(data, source)
}

// ToStruct encodes the manifest as a GetManifest response
func (m *Manifest) ToStruct() (*structpb.Struct, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return out, nil
}

// Validate checks required attributes, normalizes defaults and indexes the
// fields by key and by path.
func (m *Manifest) Validate() error {
	m.byKey = make(map[string]int, len(m.Fields))
	m.byPath = make(map[string]int, len(m.Fields))

	var errs []error
	for i := range m.Fields {
		f := &m.Fields[i]

		if f.Key == "" {
			errs = append(errs, fmt.Errorf("fields[%d]: key is required", i))
			continue
		}
		if f.Key == syncpb.IntroductionFinishedKey {
			errs = append(errs, fmt.Errorf("fields[%d]: key %q is reserved", i, f.Key))
			continue
		}
		if _, dup := m.byKey[f.Key]; dup {
			errs = append(errs, fmt.Errorf("fields[%d]: duplicate key %q", i, f.Key))
			continue
		}

		if f.Event == "" {
			f.Event = GlobalVarModified
		}

		if err := validateFieldPath(f.Path); err != nil {
			errs = append(errs, fmt.Errorf("fields[%d] (%s): %w", i, f.Key, err))
			continue
		}
		f.Path = normalizePath(f.Path)

		if !f.Type.Valid() {
			errs = append(errs, fmt.Errorf("fields[%d] (%s): %w", i, f.Key, hosterr.ErrInvalidDatatype(string(f.Type))))
			continue
		}
		if f.Event == GlobalVarModified && (f.Type == tree.DatatypeNode || f.Type == tree.DatatypeObject) {
			errs = append(errs, fmt.Errorf("fields[%d] (%s): type %s cannot be synchronized", i, f.Key, f.Type))
			continue
		}
		if f.Default != nil && f.Event == GlobalVarModified {
			if _, err := tree.Coerce(f.Type, f.Default); err != nil {
				errs = append(errs, fmt.Errorf("fields[%d] (%s): default: %w", i, f.Key, err))
				continue
			}
		}

		m.byKey[f.Key] = i
		if f.Event == GlobalVarModified {
			if _, dup := m.byPath[f.Path]; dup {
				errs = append(errs, fmt.Errorf("fields[%d] (%s): duplicate path %q", i, f.Key, f.Path))
				continue
			}
			m.byPath[f.Path] = i
		}
	}

	return errors.Join(errs...)
}

func validateFieldPath(path string) error {
	segments := strings.Split(strings.Trim(path, tree.Separator), tree.Separator)
	if len(segments) == 1 && segments[0] == "" {
		return errors.New("path is required")
	}
	for _, seg := range segments {
		if !tree.ValidName(seg) {
			return hosterr.ErrInvalidName(seg)
		}
	}
	return nil
}

func normalizePath(path string) string {
	return tree.Separator + strings.Trim(path, tree.Separator)
}

// Source returns where the manifest was loaded from
func (m *Manifest) Source() string { return m.source }

// Lookup resolves an external key
func (m *Manifest) Lookup(key string) (Field, bool) {
	i, ok := m.byKey[key]
	if !ok {
		return Field{}, false
	}
	return m.Fields[i], true
}

// FieldByPath resolves a synchronized field by its path relative to the
// instance subtree.
func (m *Manifest) FieldByPath(path string) (Field, bool) {
	i, ok := m.byPath[normalizePath(path)]
	if !ok {
		return Field{}, false
	}
	return m.Fields[i], true
}

// Synchronized returns the fields the tree mirrors, in manifest order
func (m *Manifest) Synchronized() []Field {
	out := make([]Field, 0, len(m.byPath))
	for _, f := range m.Fields {
		if f.Event == GlobalVarModified {
			out = append(out, f)
		}
	}
	return out
}
