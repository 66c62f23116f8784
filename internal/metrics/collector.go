package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/domain"
	"github.com/aqura-labs/pushrelay/internal/repository"
)

// Collector periodically samples queue depth and subscription counts into
// the gauges. Counters are updated inline by the processor hooks; gauges
// need a poll because their truth lives in the database.
type Collector struct {
	metrics  *Metrics
	queue    repository.QueueRepository
	subs     repository.SubscriptionRepository
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewCollector(m *Metrics, queue repository.QueueRepository, subs repository.SubscriptionRepository, interval time.Duration, logger *zap.Logger) *Collector {
	return &Collector{
		metrics:  m,
		queue:    queue,
		subs:     subs,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.sample(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sample(ctx)
			}
		}
	}()
}

func (c *Collector) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}

func (c *Collector) sample(ctx context.Context) {
	counts, err := c.queue.CountByStatus(ctx)
	if err != nil {
		c.logger.Warn("queue depth sample failed", zap.Error(err))
	} else {
		for _, status := range []domain.Status{
			domain.StatusPending, domain.StatusProcessing, domain.StatusRetry,
			domain.StatusSent, domain.StatusFailed,
		} {
			c.metrics.QueueDepth.WithLabelValues(string(status)).Set(float64(counts[status]))
		}
	}

	stats, err := c.subs.Stats(ctx)
	if err != nil {
		c.logger.Warn("subscription stats sample failed", zap.Error(err))
		return
	}
	c.metrics.SubscriptionsTotal.WithLabelValues("active").Set(float64(stats.Active))
	c.metrics.SubscriptionsTotal.WithLabelValues("inactive").Set(float64(stats.Inactive))
	c.metrics.SubscriptionsTotal.WithLabelValues("mobile").Set(float64(stats.Mobile))
	c.metrics.SubscriptionsTotal.WithLabelValues("desktop").Set(float64(stats.Desktop))
}
