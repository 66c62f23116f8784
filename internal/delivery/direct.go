package delivery

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// InstanceNotifier renders a notification inside an already-open app
// instance, bypassing the push service entirely.
type InstanceNotifier interface {
	// ActiveInstance returns the id of an open, focused-capable instance for
	// the device, or false when none is open.
	ActiveInstance(ctx context.Context, deviceID string) (string, bool, error)
	Show(ctx context.Context, instanceID string, d *Delivery, opts DisplayOptions) error
}

// DirectChannel shows the notification in-process when an app instance is
// open. Used as the fallback when the background agent path fails.
type DirectChannel struct {
	notifier InstanceNotifier
	logger   *zap.Logger
}

func NewDirectChannel(notifier InstanceNotifier, logger *zap.Logger) *DirectChannel {
	return &DirectChannel{notifier: notifier, logger: logger}
}

func (c *DirectChannel) Name() string { return "direct" }

func (c *DirectChannel) Show(ctx context.Context, d *Delivery) error {
	instanceID, ok, err := c.notifier.ActiveInstance(ctx, d.Subscription.DeviceID)
	if err != nil {
		return fmt.Errorf("locate instance: %w", err)
	}
	if !ok {
		return fmt.Errorf("no open instance for device %s", d.Subscription.DeviceID)
	}

	opts := OptionsFor(d.Subscription.DeviceType, false)
	if err := c.notifier.Show(ctx, instanceID, d, opts); err != nil {
		return fmt.Errorf("direct show: %w", err)
	}
	return nil
}
