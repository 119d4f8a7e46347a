package redemption

import (
	"context"
	"time"

	"github.com/perkhub/loyalty/internal/logger"
	"github.com/perkhub/loyalty/internal/repository"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepBatch    = 1000
)

// Sweeper periodically flips due pending redemptions to expired. It converges
// to the same terminal state as the lazy expiry on the read paths, and
// re-running over already expired rows is a no-op.
type Sweeper struct {
	interval  time.Duration
	batchSize int
	storage   repository.Storage
	logger    logger.Logger
}

func NewSweeper(storage repository.Storage, l logger.Logger, interval time.Duration, batchSize int) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if batchSize <= 0 {
		batchSize = defaultSweepBatch
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Sweeper{
		interval:  interval,
		batchSize: batchSize,
		storage:   storage,
		logger:    l,
	}
}

// Run sweeps until the context is done. The returned channel closes when the
// sweeper has fully stopped.
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting expiry sweeper", "interval", s.interval, "batch_size", s.batchSize)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Expiry sweeper stopped by context")
				return

			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()

	return idleStopped
}

// sweep expires due redemptions in batches until none are left
func (s *Sweeper) sweep(ctx context.Context) {
	for {
		expired, err := s.storage.Redemption().ExpireDue(ctx, time.Now().UTC(), s.batchSize)
		if err != nil {
			s.logger.Error("Failed to expire due redemptions", "error", err)
			return
		}

		if expired > 0 {
			s.logger.Info("Expired due redemptions", "count", expired)
		}

		if expired < int64(s.batchSize) {
			return
		}
	}
}
