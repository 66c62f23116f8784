package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/domain"
)

// AgentState is the lifecycle of the device-side background agent that
// renders pushed notifications.
type AgentState string

const (
	AgentInstalling AgentState = "installing"
	AgentWaiting    AgentState = "waiting"
	AgentActive     AgentState = "active"
)

// AgentProbe reports the background agent's state for a device. A probe that
// cannot tell returns AgentActive so delivery is attempted anyway.
type AgentProbe interface {
	State(ctx context.Context, deviceID string) (AgentState, error)
}

// AgentProbeFunc adapts a function to AgentProbe.
type AgentProbeFunc func(ctx context.Context, deviceID string) (AgentState, error)

func (f AgentProbeFunc) State(ctx context.Context, deviceID string) (AgentState, error) {
	return f(ctx, deviceID)
}

// AlwaysActive is the default probe for devices that cannot be interrogated.
var AlwaysActive = AgentProbeFunc(func(context.Context, string) (AgentState, error) {
	return AgentActive, nil
})

// maxTopicLen is the Web Push topic header limit.
const maxTopicLen = 32

// AgentChannel delivers through the device's background agent over the Web
// Push protocol. It is the primary channel: the notification renders even
// when no app instance is open.
type AgentChannel struct {
	vapidPublicKey  string
	vapidPrivateKey string
	subject         string
	ttl             int
	timeout         time.Duration
	waitTimeout     time.Duration
	probe           AgentProbe
	client          *http.Client
	logger          *zap.Logger
}

type AgentConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
	TTL             int
	Timeout         time.Duration
	WaitTimeout     time.Duration
	Probe           AgentProbe
}

func NewAgentChannel(cfg AgentConfig, logger *zap.Logger) *AgentChannel {
	probe := cfg.Probe
	if probe == nil {
		probe = AlwaysActive
	}
	return &AgentChannel{
		vapidPublicKey:  cfg.VAPIDPublicKey,
		vapidPrivateKey: cfg.VAPIDPrivateKey,
		subject:         cfg.Subject,
		ttl:             cfg.TTL,
		timeout:         cfg.Timeout,
		waitTimeout:     cfg.WaitTimeout,
		probe:           probe,
		client:          &http.Client{Timeout: cfg.Timeout},
		logger:          logger,
	}
}

func (c *AgentChannel) Name() string { return "agent" }

func (c *AgentChannel) Show(ctx context.Context, d *Delivery) error {
	if err := c.awaitActive(ctx, d.Subscription.DeviceID); err != nil {
		return err
	}

	opts := OptionsFor(d.Subscription.DeviceType, d.Subscription.DeviceType == domain.DeviceMobile)
	body, err := json.Marshal(struct {
		domain.Payload
		Options DisplayOptions `json:"options"`
	}{Payload: d.Payload, Options: opts})
	if err != nil {
		return Permanent(fmt.Errorf("encode payload: %w", err))
	}

	sub := &webpush.Subscription{
		Endpoint: d.Subscription.Endpoint,
		Keys: webpush.Keys{
			P256dh: d.Subscription.P256dh,
			Auth:   d.Subscription.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, sub, &webpush.Options{
		HTTPClient:      c.client,
		Subscriber:      c.subject,
		VAPIDPublicKey:  c.vapidPublicKey,
		VAPIDPrivateKey: c.vapidPrivateKey,
		TTL:             c.ttl,
		Urgency:         webpush.Urgency(d.Priority.Urgency()),
		Topic:           truncateTopic(d.Payload.Tag),
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	return classifyStatus(resp.StatusCode)
}

// awaitActive gives an installing or waiting agent a bounded window to
// activate before the channel is skipped.
func (c *AgentChannel) awaitActive(ctx context.Context, deviceID string) error {
	deadline := time.Now().Add(c.waitTimeout)
	for {
		state, err := c.probe.State(ctx, deviceID)
		if err != nil {
			return fmt.Errorf("probe agent: %w", err)
		}
		if state == AgentActive {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("agent not active: state %s", state)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound, code == http.StatusGone:
		return Permanent(fmt.Errorf("subscription expired: push service returned %d", code))
	case code == http.StatusBadRequest, code == http.StatusRequestEntityTooLarge:
		return Permanent(fmt.Errorf("push service rejected request: %d", code))
	default:
		return fmt.Errorf("push service returned %d", code)
	}
}

func truncateTopic(tag string) string {
	if len(tag) > maxTopicLen {
		return tag[:maxTopicLen]
	}
	return tag
}
