package nodestore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MemoryBackend is a map-backed OwnedBackend. It is the default store for
// namespaces without dedicated persistence and is also handy in tests.
type MemoryBackend struct {
	mu     sync.RWMutex
	nodes  map[NodeID]*Node
	logger zerolog.Logger
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(logger zerolog.Logger) *MemoryBackend {
	return &MemoryBackend{
		nodes:  make(map[NodeID]*Node),
		logger: logger.With().Str("component", "MemoryBackend").Logger(),
	}
}

// CreateNode stores a copy of the node. Fails with ErrNodeExists when the id
// is already taken.
func (m *MemoryBackend) CreateNode(ctx context.Context, node *Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %v", ErrNodeExists, node.ID)
	}
	cp := node.Clone()
	cp.ModifiedAt = time.Now().UTC()
	m.nodes[node.ID] = cp
	m.logger.Debug().Uint16("namespace", node.ID.Namespace).Str("name", node.ID.Name).Msg("Node created")
	return nil
}

// ReadNode returns a copy of the stored node.
func (m *MemoryBackend) ReadNode(ctx context.Context, id NodeID) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	node, ok := m.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}
	return node.Clone(), nil
}

// WriteNode replaces an existing node. Fails with ErrNodeNotFound when the
// node has not been created.
func (m *MemoryBackend) WriteNode(ctx context.Context, node *Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.nodes[node.ID]; !exists {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, node.ID)
	}
	cp := node.Clone()
	cp.ModifiedAt = time.Now().UTC()
	m.nodes[node.ID] = cp
	m.logger.Debug().Uint16("namespace", node.ID.Namespace).Str("name", node.ID.Name).Msg("Node written")
	return nil
}

// DeleteNode removes a node.
func (m *MemoryBackend) DeleteNode(ctx context.Context, id NodeID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.nodes[id]; !exists {
		return fmt.Errorf("%w: %v", ErrNodeNotFound, id)
	}
	delete(m.nodes, id)
	m.logger.Debug().Uint16("namespace", id.Namespace).Str("name", id.Name).Msg("Node deleted")
	return nil
}

// IterateNodes visits every stored node until the visitor returns false.
// Visit order is unspecified.
func (m *MemoryBackend) IterateNodes(ctx context.Context, visit func(*Node) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, node := range m.nodes {
		if !visit(node.Clone()) {
			return nil
		}
	}
	return nil
}

// Release drops all stored nodes. The backend owner calls this once, after
// unlinking the backend from any switch that still routes to it.
func (m *MemoryBackend) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = make(map[NodeID]*Node)
	m.logger.Info().Msg("Memory backend released")
	return nil
}
