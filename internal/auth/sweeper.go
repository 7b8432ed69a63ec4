package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically evicts expired entries from the in-process fallback
// stores. The shared cache expires keys itself and never needs sweeping, so
// wire a Sweeper only when the memory backends are in use. It runs
// independently of request handling.
type Sweeper struct {
	interval time.Duration
	targets  []Sweepable
	logger   *zap.Logger
	now      func() time.Time
}

// NewSweeper builds a sweeper over the given targets.
func NewSweeper(interval time.Duration, logger *zap.Logger, targets ...Sweepable) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		interval: interval,
		targets:  targets,
		logger:   logger,
		now:      time.Now,
	}
}

// Run blocks until ctx is done, sweeping on every tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() {
	now := s.now().UTC()
	total := 0
	for _, target := range s.targets {
		total += target.Sweep(now)
	}
	if total > 0 {
		s.logger.Debug("sweep completed", zap.Int("removed", total))
	}
}
