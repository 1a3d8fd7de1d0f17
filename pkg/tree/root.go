package tree

import (
	"strings"

	"github.com/inexorgame-obsolete/inexor-flex-sub000/pkg/hosterr"
)

// Root is the node at "/" with path-based lookup and creation
type Root struct {
	*Node
}

// NewRoot creates an empty tree
func NewRoot() *Root {
	r := &Root{}
	r.Node = newNode(nil, r, "", DatatypeNode, nil, false, false, "")
	return r
}

func splitPath(path string) []string {
	raw := strings.Split(path, Separator)
	segments := raw[:0]
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// FindNode resolves an absolute path. It returns nil if any segment is
// missing or traverses a leaf.
func (r *Root) FindNode(path string) *Node {
	n := r.Node
	for _, seg := range splitPath(path) {
		if n = n.GetChild(seg); n == nil {
			return nil
		}
	}
	return n
}

// Contains reports whether a node exists at path
func (r *Root) Contains(path string) bool {
	return r.FindNode(path) != nil
}

// CreateRecursive creates every missing container along path and a terminal
// node of the given datatype. Existing nodes along the way, including the
// terminal node, are reused as they are.
func (r *Root) CreateRecursive(path string, datatype Datatype, initialValue any, sync, readOnly bool, externalKey string) (*Node, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		if !datatype.IsContainer() {
			return nil, hosterr.ErrNotAContainer(Separator)
		}
		return r.Node, nil
	}

	n := r.Node
	for _, seg := range segments[:len(segments)-1] {
		next, err := n.addChild(seg, DatatypeNode, nil, false, false, "")
		if err != nil {
			return nil, err
		}
		n = next
	}
	return n.addChild(segments[len(segments)-1], datatype, initialValue, sync, readOnly, externalKey)
}
