package tree

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
)

// Separator delimits path segments
const Separator = "/"

var validName = regexp.MustCompile(`^[\w ]+$`)

// ValidName reports whether name can be used as a node name
func ValidName(name string) bool {
	return validName.MatchString(name)
}

// Node is a single vertex of the tree. Its value is either an ordered set of
// named children (datatype "node") or a scalar of its declared datatype.
type Node struct {
	name        string
	path        string
	datatype    Datatype
	syncEnabled bool
	readOnly    bool
	externalKey string
	parent      *Node
	root        *Root

	// setMu serializes Set so that writes are broadcast in call order
	setMu sync.Mutex

	mu           sync.RWMutex
	value        any
	children     map[string]*Node
	order        []string
	lastModified time.Time

	obs observers
}

// SetOption modifies a single Set call
type SetOption func(*setOptions)

type setOptions struct {
	preventSync bool
}

// PreventSync applies a value without emitting EventSync. Used for values
// that arrived from the remote side.
var PreventSync SetOption = func(o *setOptions) { o.preventSync = true }

func newNode(parent *Node, root *Root, name string, datatype Datatype, value any, syncEnabled, readOnly bool, externalKey string) *Node {
	n := &Node{
		name:         name,
		datatype:     datatype,
		syncEnabled:  syncEnabled,
		readOnly:     readOnly,
		externalKey:  externalKey,
		parent:       parent,
		root:         root,
		lastModified: time.Now(),
	}

	switch {
	case parent == nil:
		n.path = Separator
	case parent.parent == nil:
		n.path = Separator + name
	default:
		n.path = parent.path + Separator + name
	}

	if datatype.IsContainer() {
		n.children = make(map[string]*Node)
	} else {
		n.value = value
	}
	return n
}

// Name returns the last path segment ("" for the root)
func (n *Node) Name() string { return n.name }

// Path returns the absolute path of the node
func (n *Node) Path() string { return n.path }

// Datatype returns the declared datatype
func (n *Node) Datatype() Datatype { return n.datatype }

// IsContainer reports whether the node holds children instead of a scalar
func (n *Node) IsContainer() bool { return n.datatype.IsContainer() }

// SyncEnabled reports whether local writes emit EventSync
func (n *Node) SyncEnabled() bool { return n.syncEnabled }

// ReadOnly reports whether Set is ignored on this node
func (n *Node) ReadOnly() bool { return n.readOnly }

// ExternalKey returns the key used for this node on the sync wire, if any
func (n *Node) ExternalKey() string { return n.externalKey }

// Parent returns the owning container, or nil for the root
func (n *Node) Parent() *Node { return n.parent }

// Root returns the root of the tree the node belongs to
func (n *Node) Root() *Root { return n.root }

// LastModified returns the time of creation or of the last accepted Set
func (n *Node) LastModified() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastModified
}

// Get returns the scalar value of a leaf. For a container it returns a
// copy of the child mapping taken under the read lock, not the live map:
// later AddChild and RemoveChild calls are not reflected in it, and changing
// it does not change the tree. Use GetChildNames for the insertion order.
func (n *Node) Get() any {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.IsContainer() {
		out := make(map[string]*Node, len(n.children))
		for k, v := range n.children {
			out[k] = v
		}
		return out
	}
	return n.value
}

// Set replaces the value of a leaf.
//
// Set is a no-op on containers and read-only leaves. The value is coerced
// into the node's datatype first; if that fails the node is left untouched
// and a CONVERSION_FAILED error is returned. Observers see EventPreSet, then
// EventSync (only if the node has sync enabled and PreventSync was not
// given), then EventPostSet.
func (n *Node) Set(value any, opts ...SetOption) error {
	if n.IsContainer() || n.readOnly {
		return nil
	}

	var o setOptions
	for _, opt := range opts {
		opt(&o)
	}

	coerced, err := Coerce(n.datatype, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", n.path, err)
	}

	n.setMu.Lock()
	defer n.setMu.Unlock()

	n.mu.RLock()
	old := n.value
	n.mu.RUnlock()

	n.obs.emit(Event{Kind: EventPreSet, Node: n, Old: old, New: coerced})

	n.mu.Lock()
	n.value = coerced
	n.mu.Unlock()

	if n.syncEnabled && !o.preventSync {
		n.obs.emit(Event{Kind: EventSync, Node: n, Old: old, New: coerced})
	}

	n.mu.Lock()
	n.lastModified = time.Now()
	n.mu.Unlock()

	n.obs.emit(Event{Kind: EventPostSet, Node: n, Old: old, New: coerced})
	return nil
}

// On registers fn for events of the given kind
func (n *Node) On(kind EventKind, fn Observer) Unsubscriber {
	return n.obs.add(kind, fn)
}

// AddChild creates a child of this container.
//
// A nil initialValue gives leaves the zero value of their datatype. If a
// child with the same name already exists it is returned unchanged and no
// event is emitted.
func (n *Node) AddChild(name string, datatype Datatype, initialValue any, sync, readOnly bool) (*Node, error) {
	return n.addChild(name, datatype, initialValue, sync, readOnly, "")
}

// AddNode creates a child container
func (n *Node) AddNode(name string) (*Node, error) {
	return n.addChild(name, DatatypeNode, nil, false, false, "")
}

func (n *Node) addChild(name string, datatype Datatype, initialValue any, sync, readOnly bool, externalKey string) (*Node, error) {
	if strings.Contains(name, Separator) || !ValidName(name) {
		return nil, hosterr.ErrInvalidName(name)
	}
	if !datatype.Valid() {
		return nil, hosterr.ErrInvalidDatatype(string(datatype))
	}
	if !n.IsContainer() {
		return nil, hosterr.ErrNotAContainer(n.path)
	}

	value := initialValue
	if !datatype.IsContainer() {
		if value == nil {
			value = datatype.ZeroValue()
		} else {
			coerced, err := Coerce(datatype, value)
			if err != nil {
				return nil, fmt.Errorf("add child %s to %s: %w", name, n.path, err)
			}
			value = coerced
		}
	}

	n.mu.Lock()
	if existing, ok := n.children[name]; ok {
		n.mu.Unlock()
		return existing, nil
	}
	child := newNode(n, n.root, name, datatype, value, sync, readOnly, externalKey)
	n.children[name] = child
	n.order = append(n.order, name)
	n.mu.Unlock()

	ev := Event{Kind: EventAdd, Node: child}
	for p := n; p != nil; p = p.parent {
		p.obs.emit(ev)
	}
	return child, nil
}

// RemoveChild deletes the named child. Absent names and read-only children
// are ignored.
func (n *Node) RemoveChild(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	child, ok := n.children[name]
	if !ok || child.readOnly {
		return
	}
	delete(n.children, name)
	for i, k := range n.order {
		if k == name {
			n.order = append(n.order[:i:i], n.order[i+1:]...)
			break
		}
	}
}

// HasChild reports whether the container has a child with the given name
func (n *Node) HasChild(name string) bool {
	return n.GetChild(name) != nil
}

// GetChild returns the named child or nil
func (n *Node) GetChild(name string) *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.children[name]
}

// GetChildNames returns the child names in insertion order
func (n *Node) GetChildNames() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]string(nil), n.order...)
}

// Children returns the children in insertion order
func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]*Node, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.children[name])
	}
	return out
}

// Walk visits n and every descendant depth-first in insertion order until
// fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children() {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// String renders the subtree rooted at n, one node per line
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b, 0)
	return b.String()
}

func (n *Node) write(b *strings.Builder, depth int) {
	label := n.name
	if n.parent == nil {
		label = Separator
	}
	b.WriteString(strings.Repeat("  ", depth))

	if n.IsContainer() {
		fmt.Fprintf(b, "%s (%s)\n", label, n.datatype)
		for _, c := range n.Children() {
			c.write(b, depth+1)
		}
		return
	}

	var flags []string
	if n.syncEnabled {
		flags = append(flags, "sync")
	}
	if n.readOnly {
		flags = append(flags, "ro")
	}
	sort.Strings(flags)
	suffix := ""
	if len(flags) > 0 {
		suffix = " [" + strings.Join(flags, ",") + "]"
	}
	fmt.Fprintf(b, "%s (%s) = %v%s\n", label, n.datatype, n.Get(), suffix)
}
