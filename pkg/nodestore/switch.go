package nodestore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Switch is a namespace-indexed routing table over storage backends. It
// implements Backend itself: every operation derives the namespace from the
// node id, resolves the linked backend (falling back to the default), and
// forwards the call verbatim.
//
// The switch holds only borrowed references. Linking, replacing or unlinking
// never destroys a backend, and no operation here allocates, so SetBackend
// cannot fail. The switch is not safe for concurrent mutation; link changes
// belong between iterations of the server loop, never interleaved with an
// in-flight dispatch.
type Switch struct {
	entries  map[uint16]Backend
	fallback Backend
	logger   zerolog.Logger
}

// NewSwitch creates a switch with the given default backend. The default may
// be nil, in which case dispatch into an unlinked namespace fails with
// ErrNoBackend.
func NewSwitch(fallback Backend, logger zerolog.Logger) *Switch {
	return &Switch{
		entries:  make(map[uint16]Backend),
		fallback: fallback,
		logger:   logger.With().Str("component", "NodestoreSwitch").Logger(),
	}
}

// SetBackend installs, replaces, or (with nil) removes the mapping for the
// namespace index. The previous backend, if any, is left untouched; its
// owner remains responsible for releasing it.
func (s *Switch) SetBackend(namespace uint16, backend Backend) {
	if backend == nil {
		delete(s.entries, namespace)
		s.logger.Info().Uint16("namespace", namespace).Msg("Backend unlinked")
		return
	}
	s.entries[namespace] = backend
	s.logger.Info().Uint16("namespace", namespace).Msg("Backend linked")
}

// BackendFor returns the backend linked to the namespace index, or the
// default backend when none is linked. The result may be nil when no default
// exists.
func (s *Switch) BackendFor(namespace uint16) Backend {
	if b, ok := s.entries[namespace]; ok {
		return b
	}
	return s.fallback
}

func (s *Switch) resolve(namespace uint16) (Backend, error) {
	if b := s.BackendFor(namespace); b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("%w: namespace %d", ErrNoBackend, namespace)
}

// CreateNode routes to the backend serving the node's namespace.
func (s *Switch) CreateNode(ctx context.Context, node *Node) error {
	b, err := s.resolve(node.ID.Namespace)
	if err != nil {
		return err
	}
	return b.CreateNode(ctx, node)
}

// ReadNode routes to the backend serving the node's namespace.
func (s *Switch) ReadNode(ctx context.Context, id NodeID) (*Node, error) {
	b, err := s.resolve(id.Namespace)
	if err != nil {
		return nil, err
	}
	return b.ReadNode(ctx, id)
}

// WriteNode routes to the backend serving the node's namespace.
func (s *Switch) WriteNode(ctx context.Context, node *Node) error {
	b, err := s.resolve(node.ID.Namespace)
	if err != nil {
		return err
	}
	return b.WriteNode(ctx, node)
}

// DeleteNode routes to the backend serving the node's namespace.
func (s *Switch) DeleteNode(ctx context.Context, id NodeID) error {
	b, err := s.resolve(id.Namespace)
	if err != nil {
		return err
	}
	return b.DeleteNode(ctx, id)
}

// IterateNodes visits the nodes of every distinct linked backend, then the
// default. A backend linked under several namespaces is visited once.
func (s *Switch) IterateNodes(ctx context.Context, visit func(*Node) bool) error {
	seen := make(map[Backend]bool, len(s.entries)+1)
	for _, b := range s.entries {
		if seen[b] {
			continue
		}
		seen[b] = true
		if err := b.IterateNodes(ctx, visit); err != nil {
			return err
		}
	}
	if s.fallback != nil && !seen[s.fallback] {
		return s.fallback.IterateNodes(ctx, visit)
	}
	return nil
}
