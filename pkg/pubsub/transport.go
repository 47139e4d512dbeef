package pubsub

import (
	"fmt"

	"github.com/rs/zerolog"
)

// TransportLayer couples a transport profile URI with a factory that opens a
// channel for that profile. Factories return the Channel interface and never
// a partially initialized implementation: an open that fails part-way must
// release everything it acquired before returning.
type TransportLayer struct {
	ProfileURI    string
	CreateChannel func(cfg ConnectionConfig, logger zerolog.Logger) (Channel, error)
}

// LayerRegistry selects a transport layer by profile URI. Registration
// happens during process startup; the registry is not safe for concurrent
// mutation afterwards.
type LayerRegistry struct {
	layers map[string]TransportLayer
	logger zerolog.Logger
}

// NewLayerRegistry returns an empty registry.
func NewLayerRegistry(logger zerolog.Logger) *LayerRegistry {
	return &LayerRegistry{
		layers: make(map[string]TransportLayer),
		logger: logger.With().Str("component", "LayerRegistry").Logger(),
	}
}

// RegisterLayer adds a transport layer. Registering the same profile URI
// twice is a programming error and is rejected.
func (r *LayerRegistry) RegisterLayer(layer TransportLayer) error {
	if layer.ProfileURI == "" || layer.CreateChannel == nil {
		return fmt.Errorf("%w: transport layer needs a profile URI and a factory", ErrConfig)
	}
	if _, exists := r.layers[layer.ProfileURI]; exists {
		return fmt.Errorf("%w: transport profile %q already registered", ErrConfig, layer.ProfileURI)
	}
	r.layers[layer.ProfileURI] = layer
	r.logger.Info().Str("profile", layer.ProfileURI).Msg("Registered transport layer")
	return nil
}

// CreateChannel opens a channel through the layer registered for profileURI.
func (r *LayerRegistry) CreateChannel(profileURI string, cfg ConnectionConfig, logger zerolog.Logger) (Channel, error) {
	layer, ok := r.layers[profileURI]
	if !ok {
		return nil, fmt.Errorf("%w: no transport layer for profile %q", ErrNotFound, profileURI)
	}
	r.logger.Info().Str("profile", profileURI).Str("connection", cfg.Name).Msg("Channel requested")
	return layer.CreateChannel(cfg, logger)
}
