package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type expiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Sweeper периодически убирает ссылки, истекшие дольше срока хранения.
type Sweeper struct {
	purger   expiredPurger
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(purger expiredPurger, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		purger:   purger,
		interval: interval,
		logger:   logger.Named("app/sweeper"),
	}
}

// Run блокируется до отмены ctx. Ошибка одного прохода только логируется.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	purged, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("purge expired links", zap.Error(err))
		return
	}
	if purged > 0 {
		s.logger.Info("expired links purged", zap.Int64("count", purged))
	}
}
