// Package fabric hosts the cooperative server loop that owns a nodestore
// switch and a set of broker channels. One goroutine drives RunIterate;
// backend link changes are queued and applied only between iterations, never
// interleaved with an in-flight dispatch or pump.
package fabric

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-fieldbus/pkg/nodestore"
	"github.com/illmade-knight/go-fieldbus/pkg/pubsub"
)

type linkRequest struct {
	namespace uint16
	backend   nodestore.Backend // nil unlinks
}

// Server couples the namespace-routed node store with the pub/sub channels
// of one server instance. It borrows backends and owns channels: Close
// closes every channel but never releases a backend.
type Server struct {
	store    *nodestore.Switch
	layers   *pubsub.LayerRegistry
	channels map[string]pubsub.Channel
	pending  []linkRequest
	logger   zerolog.Logger
}

// NewServer creates a server around a switch with the given default backend.
func NewServer(defaultBackend nodestore.Backend, layers *pubsub.LayerRegistry, logger zerolog.Logger) *Server {
	log := logger.With().Str("component", "FabricServer").Logger()
	return &Server{
		store:    nodestore.NewSwitch(defaultBackend, log),
		layers:   layers,
		channels: make(map[string]pubsub.Channel),
		logger:   log,
	}
}

// Nodes exposes the routed node store for request dispatch.
func (s *Server) Nodes() nodestore.Backend {
	return s.store
}

// LinkBackend queues a backend for the namespace; the link is applied at the
// end of the current iteration.
func (s *Server) LinkBackend(namespace uint16, backend nodestore.Backend) {
	s.pending = append(s.pending, linkRequest{namespace: namespace, backend: backend})
}

// UnlinkBackend queues removal of the namespace mapping. The backend itself
// stays alive; its owner can relink it here or into a successor server.
func (s *Server) UnlinkBackend(namespace uint16) {
	s.pending = append(s.pending, linkRequest{namespace: namespace})
}

// OpenChannel opens a channel for the transport profile and tracks it under
// name. The name must be unused.
func (s *Server) OpenChannel(name, profileURI string, cfg pubsub.ConnectionConfig) (pubsub.Channel, error) {
	if _, exists := s.channels[name]; exists {
		return nil, fmt.Errorf("%w: channel %q already open", pubsub.ErrConfig, name)
	}
	ch, err := s.layers.CreateChannel(profileURI, cfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.channels[name] = ch
	s.logger.Info().Str("channel", name).Str("profile", profileURI).Msg("Channel opened")
	return ch, nil
}

// Channel returns the named channel, or nil if unknown.
func (s *Server) Channel(name string) pubsub.Channel {
	return s.channels[name]
}

// RunIterate performs one cooperative processing iteration: every Ready
// channel is pumped for up to timeout, then queued backend link changes are
// applied. Channels that entered the sticky Error state are reported and
// left for the caller to close or replace.
func (s *Server) RunIterate(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for name, ch := range s.channels {
		if ch.State() != pubsub.StateReady {
			continue
		}
		if err := ch.Yield(timeout); err != nil {
			s.logger.Error().Err(err).Str("channel", name).Msg("Channel pump failed")
		}
	}

	for _, req := range s.pending {
		s.store.SetBackend(req.namespace, req.backend)
	}
	s.pending = s.pending[:0]
	return nil
}

// Close closes every channel. Backends linked into the switch are untouched;
// their owners unlink and release them separately.
func (s *Server) Close() {
	for name, ch := range s.channels {
		if err := ch.Close(); err != nil {
			s.logger.Warn().Err(err).Str("channel", name).Msg("Channel close reported an error")
		}
	}
	s.channels = make(map[string]pubsub.Channel)
	s.logger.Info().Msg("Fabric server closed")
}
