package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/repository"
)

// Janitor removes terminal queue rows past their retention window. Runs
// daily; the operator endpoint can also trigger it with a custom window.
type Janitor struct {
	queue         repository.QueueRepository
	period        time.Duration
	retentionDays int
	logger        *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewJanitor(queue repository.QueueRepository, period time.Duration, retentionDays int, logger *zap.Logger) *Janitor {
	return &Janitor{
		queue:         queue,
		period:        period,
		retentionDays: retentionDays,
		logger:        logger,
		done:          make(chan struct{}),
	}
}

func (j *Janitor) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)

	go func() {
		defer close(j.done)

		ticker := time.NewTicker(j.period)
		defer ticker.Stop()

		j.logger.Info("queue janitor started",
			zap.Duration("period", j.period),
			zap.Int("retention_days", j.retentionDays))

		for {
			select {
			case <-ctx.Done():
				j.logger.Info("queue janitor stopped")
				return
			case <-ticker.C:
				if _, err := j.CleanupOld(ctx, j.retentionDays); err != nil {
					j.logger.Error("terminal-row cleanup failed", zap.Error(err))
				}
			}
		}
	}()
}

func (j *Janitor) Stop() {
	if j.cancel != nil {
		j.cancel()
		<-j.done
	}
}

// CleanupOld deletes sent and failed rows older than the given number of
// days. Returns rows deleted.
func (j *Janitor) CleanupOld(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = j.retentionDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	deleted, err := j.queue.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete terminal entries: %w", err)
	}
	if deleted > 0 {
		j.logger.Info("deleted old terminal entries",
			zap.Int("deleted", deleted), zap.Int("days", days))
	}
	return deleted, nil
}
