package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/delivery"
	"github.com/aqura-labs/pushrelay/internal/domain"
	"github.com/aqura-labs/pushrelay/internal/repository"
)

// MetricHooks lets the caller observe processing outcomes without coupling
// the processor to a metrics backend. Nil hooks are skipped. Successful
// deliveries are counted by the deliverer, which knows the channel used.
type MetricHooks struct {
	Retried func()
	Failed  func()
}

func (h MetricHooks) retried() {
	if h.Retried != nil {
		h.Retried()
	}
}

func (h MetricHooks) failed() {
	if h.Failed != nil {
		h.Failed()
	}
}

// Config tunes the processor's polling and retry behavior.
type Config struct {
	PollInterval time.Duration
	ClaimBatch   int
	RetryBackoff time.Duration
	FailedRowTTL time.Duration
}

// Processor drains the notification queue: claim due entries, attempt
// delivery, and advance each entry's state machine. Multiple instances can
// run concurrently; every transition is an idempotent single-row update and
// the post-send dedup sweep makes double-processing converge.
type Processor struct {
	queue   repository.QueueRepository
	subs    repository.SubscriptionRepository
	channel delivery.Channel
	cfg     Config
	hooks   MetricHooks
	logger  *zap.Logger
	now     func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func New(queue repository.QueueRepository, subs repository.SubscriptionRepository, channel delivery.Channel, cfg Config, hooks MetricHooks, logger *zap.Logger) *Processor {
	return &Processor{
		queue:   queue,
		subs:    subs,
		channel: channel,
		cfg:     cfg,
		hooks:   hooks,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		done:    make(chan struct{}),
	}
}

// Start launches the poll loop: one immediate pass, then one per interval.
func (p *Processor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(p.cfg.PollInterval)
		defer ticker.Stop()

		p.logger.Info("queue processor started",
			zap.Duration("poll_interval", p.cfg.PollInterval),
			zap.Int("claim_batch", p.cfg.ClaimBatch))

		p.runOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				p.logger.Info("queue processor stopped")
				return
			case <-ticker.C:
				p.runOnce(ctx)
			}
		}
	}()
}

// Stop cancels the poll loop and waits for the in-flight pass to finish.
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
}

func (p *Processor) runOnce(ctx context.Context) {
	if _, err := p.ProcessOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("queue pass failed", zap.Error(err))
	}
}

// ProcessOnce runs a single pass: preventive failed-row sweep, then claim
// and process one batch. Returns the number of entries attempted.
func (p *Processor) ProcessOnce(ctx context.Context) (int, error) {
	now := p.now()

	if deleted, err := p.queue.DeleteFailedOlderThan(ctx, now.Add(-p.cfg.FailedRowTTL)); err != nil {
		p.logger.Warn("failed-row sweep errored", zap.Error(err))
	} else if deleted > 0 {
		p.logger.Info("swept stale failed entries", zap.Int("deleted", deleted))
	}

	entries, err := p.queue.ClaimDue(ctx, now, p.cfg.ClaimBatch)
	if err != nil {
		return 0, fmt.Errorf("claim due entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		p.processEntry(ctx, entry)
	}
	return len(entries), nil
}

// processEntry advances one entry through its state machine. Errors stay
// inside: a broken entry must not stall the rest of the batch.
func (p *Processor) processEntry(ctx context.Context, entry *domain.QueueEntry) {
	now := p.now()

	if err := p.queue.MarkProcessing(ctx, entry.ID, now); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted since the claim, usually by a sibling entry's
			// post-send dedup sweep. Nothing left to deliver.
			p.logger.Debug("claimed entry vanished before processing",
				zap.String("entry_id", entry.ID))
			return
		}
		p.logger.Error("mark processing failed",
			zap.String("entry_id", entry.ID), zap.Error(err))
		return
	}

	sub, err := p.resolveSubscription(ctx, entry)
	if err != nil {
		p.fail(ctx, entry, err.Error())
		return
	}

	priority := entry.Payload.Data.Priority
	if !priority.IsValid() {
		priority = domain.PriorityNormal
	}

	err = p.channel.Show(ctx, &delivery.Delivery{
		Subscription: sub,
		Payload:      entry.Payload,
		Priority:     priority,
	})
	switch {
	case err == nil:
		p.succeed(ctx, entry)
	case delivery.IsPermanent(err):
		p.fail(ctx, entry, err.Error())
	case entry.RetryCount >= domain.MaxRetries:
		p.fail(ctx, entry, fmt.Sprintf("retries exhausted: %v", err))
	default:
		p.retry(ctx, entry, err.Error())
	}
}

// resolveSubscription loads the entry's subscription. When it is missing or
// deactivated, the entry is rebound to the user's freshest active
// subscription; only when none exists does resolution fail.
func (p *Processor) resolveSubscription(ctx context.Context, entry *domain.QueueEntry) (*domain.Subscription, error) {
	sub, err := p.subs.GetByID(ctx, entry.SubscriptionID)
	switch {
	case err == nil && sub.IsActive:
		return sub, nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	fallback, err := p.subs.LatestActive(ctx, entry.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSubscription) || errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("find fallback subscription: %w", err)
	}

	if err := p.queue.Rebind(ctx, entry.ID, fallback.ID, fallback.DeviceID); err != nil {
		return nil, fmt.Errorf("rebind entry: %w", err)
	}
	entry.SubscriptionID = fallback.ID
	entry.DeviceID = fallback.DeviceID

	p.logger.Info("queue entry rebound to fresher subscription",
		zap.String("entry_id", entry.ID),
		zap.String("user_id", entry.UserID),
		zap.String("subscription_id", fallback.ID))
	return fallback, nil
}

func (p *Processor) succeed(ctx context.Context, entry *domain.QueueEntry) {
	now := p.now()

	if err := p.queue.MarkSent(ctx, entry.ID, now); err != nil {
		p.logger.Error("mark sent failed",
			zap.String("entry_id", entry.ID), zap.Error(err))
		return
	}

	// The user saw this notification on one device; pending copies for
	// other devices and lingering failures are noise now.
	deleted, err := p.queue.DeleteUserRedundant(ctx, entry.UserID, entry.ID)
	if err != nil {
		p.logger.Warn("redundant-entry cleanup failed",
			zap.String("user_id", entry.UserID), zap.Error(err))
		return
	}

	p.logger.Info("notification delivered",
		zap.String("entry_id", entry.ID),
		zap.String("notification_id", entry.NotificationID),
		zap.String("user_id", entry.UserID),
		zap.Int("redundant_deleted", deleted))
}

func (p *Processor) retry(ctx context.Context, entry *domain.QueueEntry, errMsg string) {
	next := p.now().Add(p.cfg.RetryBackoff)

	if err := p.queue.ScheduleRetry(ctx, entry.ID, entry.RetryCount+1, next, errMsg); err != nil {
		p.logger.Error("schedule retry failed",
			zap.String("entry_id", entry.ID), zap.Error(err))
		return
	}
	p.hooks.retried()

	p.logger.Warn("delivery failed, retry scheduled",
		zap.String("entry_id", entry.ID),
		zap.Int("retry_count", entry.RetryCount+1),
		zap.Time("next_retry_at", next),
		zap.String("error", errMsg))
}

func (p *Processor) fail(ctx context.Context, entry *domain.QueueEntry, errMsg string) {
	if err := p.queue.MarkFailed(ctx, entry.ID, errMsg, p.now()); err != nil {
		p.logger.Error("mark failed errored",
			zap.String("entry_id", entry.ID), zap.Error(err))
		return
	}
	p.hooks.failed()

	p.logger.Warn("delivery permanently failed",
		zap.String("entry_id", entry.ID),
		zap.String("notification_id", entry.NotificationID),
		zap.String("user_id", entry.UserID),
		zap.String("error", errMsg))
}
