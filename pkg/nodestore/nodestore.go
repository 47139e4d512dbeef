// Package nodestore routes per-namespace node storage operations to
// independently owned storage backends. A Switch maps namespace indices to
// backends and presents the whole set as one uniform store; backend lifetime
// is decoupled from the switch so that a store can outlive a server instance
// and be relinked into its successor.
package nodestore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNodeNotFound is returned when the addressed node does not exist in
	// the resolved backend.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNodeExists is returned by CreateNode when the node id is already
	// taken.
	ErrNodeExists = errors.New("node already exists")

	// ErrNoBackend is returned when neither a namespace-specific nor a
	// default backend is linked.
	ErrNoBackend = errors.New("no backend for namespace")
)

// NodeID addresses a node: a namespace index partitioning the information
// model, and a name unique within that namespace.
type NodeID struct {
	Namespace uint16 `json:"namespace"`
	Name      string `json:"name"`
}

// Node is the stored record. The value is opaque to the routing layer.
type Node struct {
	ID          NodeID            `json:"id"`
	DisplayName string            `json:"displayName,omitempty"`
	Value       any               `json:"value,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	ModifiedAt  time.Time         `json:"modifiedAt"`
}

// Clone returns a copy of the node with its own attribute map. The value is
// copied shallowly.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	if n.Attributes != nil {
		cp.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			cp.Attributes[k] = v
		}
	}
	return &cp
}

// Backend is the borrowed view of a storage backend: the operations a Switch
// may forward. Holding a Backend never conveys the right to destroy the
// store; that stays with whoever holds the OwnedBackend.
type Backend interface {
	CreateNode(ctx context.Context, node *Node) error
	ReadNode(ctx context.Context, id NodeID) (*Node, error)
	WriteNode(ctx context.Context, node *Node) error
	DeleteNode(ctx context.Context, id NodeID) error
	// IterateNodes visits every node until the visitor returns false.
	IterateNodes(ctx context.Context, visit func(*Node) bool) error
}

// OwnedBackend extends Backend with lifecycle control. Only the creator of a
// backend holds this interface; a Switch is handed the plain Backend and so
// cannot release a store it merely routes to.
type OwnedBackend interface {
	Backend
	// Release frees the backend's resources. Linked switches must be updated
	// beforehand; Release does not consult them.
	Release() error
}
