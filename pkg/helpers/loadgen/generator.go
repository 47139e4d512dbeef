// Package loadgen drives synthetic publish traffic at a broker so that a
// fieldbus deployment (channels, subscriptions, backends behind them) can be
// soak-tested before real publishers arrive.
package loadgen

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LoadGenerator runs one goroutine per source, publishing at the source's
// rate until the duration elapses or the context is cancelled.
type LoadGenerator struct {
	client  Client
	sources []*Source
	logger  zerolog.Logger
}

// NewLoadGenerator creates a generator over the given sources.
func NewLoadGenerator(client Client, sources []*Source, logger zerolog.Logger) *LoadGenerator {
	return &LoadGenerator{
		client:  client,
		sources: sources,
		logger:  logger.With().Str("component", "LoadGenerator").Logger(),
	}
}

// Run connects the client, publishes for the given duration, and
// disconnects. Individual publish errors are logged, not fatal.
func (lg *LoadGenerator) Run(ctx context.Context, duration time.Duration) error {
	lg.logger.Info().Int("num_sources", len(lg.sources)).Dur("duration", duration).Msg("Starting load generator")

	if err := lg.client.Connect(); err != nil {
		lg.logger.Error().Err(err).Msg("Failed to connect load generator client")
		return err
	}
	defer lg.client.Disconnect()

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var wg sync.WaitGroup
	for _, source := range lg.sources {
		wg.Add(1)
		go func(s *Source) {
			defer wg.Done()
			lg.runSource(ctx, s)
		}(source)
	}

	wg.Wait()
	lg.logger.Info().Msg("Load generator finished")
	return nil
}

func (lg *LoadGenerator) runSource(ctx context.Context, source *Source) {
	if source.MessageRate <= 0 {
		lg.logger.Warn().Str("source_id", source.ID).Msg("Source has a zero message rate, nothing to publish")
		return
	}

	interval := time.Duration(float64(time.Second) / source.MessageRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lg.logger.Info().Str("source_id", source.ID).Float64("rate_hz", source.MessageRate).Msg("Source publishing")

	for {
		select {
		case <-ctx.Done():
			lg.logger.Info().Str("source_id", source.ID).Msg("Source stopping")
			return
		case <-ticker.C:
			if err := lg.client.Publish(ctx, source); err != nil {
				lg.logger.Error().Err(err).Str("source_id", source.ID).Msg("Failed to publish message")
			}
		}
	}
}
