package delivery

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Cuer plays a minimal audible or visual attention cue on a device. It
// carries no content, only the fact that something arrived.
type Cuer interface {
	Cue(ctx context.Context, deviceID, title string) error
}

// CueChannel is the last resort: when neither the agent nor a direct show
// can render the full notification, at least get the user's attention.
type CueChannel struct {
	cuer   Cuer
	logger *zap.Logger
}

func NewCueChannel(cuer Cuer, logger *zap.Logger) *CueChannel {
	return &CueChannel{cuer: cuer, logger: logger}
}

func (c *CueChannel) Name() string { return "cue" }

func (c *CueChannel) Show(ctx context.Context, d *Delivery) error {
	if err := c.cuer.Cue(ctx, d.Subscription.DeviceID, d.Payload.Title); err != nil {
		return fmt.Errorf("attention cue: %w", err)
	}
	return nil
}
