package delivery

import (
	"context"

	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/domain"
	"github.com/aqura-labs/pushrelay/internal/ratelimiter"
)

// Deliverer walks a capability-ranked channel list until one succeeds. A
// permanent error stops the walk immediately: if the subscription is gone,
// no alternative channel can reach that device either.
type Deliverer struct {
	channels    []Channel
	pacer       *ratelimiter.Pacer
	onDelivered func(channel string)
	logger      *zap.Logger
}

func NewDeliverer(channels []Channel, pacer *ratelimiter.Pacer, logger *zap.Logger) *Deliverer {
	return &Deliverer{channels: channels, pacer: pacer, logger: logger}
}

// OnDelivered installs a callback invoked with the name of the channel that
// completed each successful delivery.
func (d *Deliverer) OnDelivered(fn func(channel string)) {
	d.onDelivered = fn
}

func (d *Deliverer) Name() string { return "deliverer" }

func (d *Deliverer) Show(ctx context.Context, del *Delivery) error {
	if d.pacer != nil {
		if err := d.pacer.Wait(ctx); err != nil {
			return err
		}
	}

	var lastErr error
	for _, ch := range d.channels {
		err := ch.Show(ctx, del)
		if err == nil {
			if d.onDelivered != nil {
				d.onDelivered(ch.Name())
			}
			if lastErr != nil {
				d.logger.Info("delivered via fallback channel",
					zap.String("channel", ch.Name()),
					zap.String("device_id", del.Subscription.DeviceID))
			}
			return nil
		}
		if IsPermanent(err) {
			return err
		}

		d.logger.Debug("delivery channel failed, trying next",
			zap.String("channel", ch.Name()),
			zap.String("device_id", del.Subscription.DeviceID),
			zap.Error(err))
		lastErr = err
	}

	if lastErr == nil {
		return domain.ErrDeliveryUnavailable
	}
	return lastErr
}
