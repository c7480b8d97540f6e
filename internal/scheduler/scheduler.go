package scheduler

import (
	"context"
	"time"

	"github.com/elonfeng/hnpipe/pkg/asset"
	"github.com/rs/zerolog"
)

// Runner materializes assets; satisfied by *asset.Materializer.
type Runner interface {
	Run(ctx context.Context, selection []string) (*asset.Result, error)
}

// Scheduler re-runs the full pipeline on a fixed interval.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   zerolog.Logger
}

// New creates a new scheduler.
func New(runner Runner, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start.
	s.logger.Info().Msg("initial run")
	s.runOnce(ctx)

	s.logger.Info().Dur("interval", s.interval).Msg("running")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// A failed run is already logged and counted by the materializer; the
// next tick starts from scratch.
func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.runner.Run(ctx, nil); err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Msg("scheduled run failed")
	}
}
