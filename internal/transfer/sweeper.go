package transfer

import (
	"context"
	"time"
)

// defaultSweepInterval applies when the configured interval is not positive.
const defaultSweepInterval = time.Minute

// Sweeper periodically expires PENDING transfers past their deadline.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   Logger
}

// NewSweeper creates a sweeper for engine.
func NewSweeper(engine *Engine, interval time.Duration, logger Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Sweeper{engine: engine, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is done.
// It always returns nil; sweep failures are logged and retried next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.engine.ExpireStale(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("expiring stale transfers failed", "error", err, "expired", n)
		}
		return
	}
	if n > 0 {
		s.logger.Info("expired stale transfers", "count", n)
	}
}
