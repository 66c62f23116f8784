package evictor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs the registry-wide cleanup on a fixed schedule.
type Sweeper struct {
	evictor      *Evictor
	interval     time.Duration
	inactiveDays int
	logger       *zap.Logger
	cancel       context.CancelFunc
	done         chan struct{}
}

func NewSweeper(evictor *Evictor, interval time.Duration, inactiveDays int, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		evictor:      evictor,
		interval:     interval,
		inactiveDays: inactiveDays,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("subscription sweeper started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("subscription sweeper stopped")
				return
			case <-ticker.C:
				s.run(ctx)
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sweeper) run(ctx context.Context) {
	s.evictor.SweepAll(ctx)

	olderThan := time.Duration(s.inactiveDays) * 24 * time.Hour
	if _, err := s.evictor.CleanupInactive(ctx, olderThan); err != nil {
		s.logger.Error("inactive subscription cleanup failed", zap.Error(err))
	}
}
