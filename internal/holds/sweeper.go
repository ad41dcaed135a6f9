package holds

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically persists expired holds.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewSweeper(m *Manager, interval time.Duration, batch int, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{manager: m, interval: interval, batch: batch, logger: logger}
}

// Run sweeps until ctx is done. A full batch triggers another pass right away.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		for {
			n, err := s.manager.ExpireStale(ctx, s.batch)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("hold sweep failed", slog.String("error", err.Error()))
				break
			}
			if n > 0 {
				s.logger.Info("holds expired", slog.Int("count", n))
			}
			if n < s.batch {
				break
			}
		}
	}
}
