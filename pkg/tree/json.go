package tree

import (
	"encoding/json"
	"time"
)

// Project returns the JSON projection of a node: the ordered child names of
// a container, or the scalar value of a leaf. Timestamps are rendered as
// RFC 3339 strings.
func Project(n *Node) any {
	if n.IsContainer() {
		return n.GetChildNames()
	}
	v := n.Get()
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	return v
}

// MarshalJSON encodes the projection of n
func (n *Node) MarshalJSON() ([]byte, error) {
	if n.datatype == DatatypeObject {
		// Opaque runtime handles are never exposed
		return []byte("null"), nil
	}
	return json.Marshal(Project(n))
}
