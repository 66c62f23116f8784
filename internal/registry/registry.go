package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/domain"
	"github.com/aqura-labs/pushrelay/internal/repository"
)

// Evictor is the per-user cleanup hook run after each registration.
// Satisfied by *evictor.Evictor; an interface here avoids an import cycle
// and lets tests observe the call.
type Evictor interface {
	CleanupUser(ctx context.Context, userID string) (deleted int, err error)
}

// Registry owns the subscription table: device registration, logout
// deactivation, and liveness touches.
//
// Nothing here may fail loudly: a registration error must never block login,
// so every public method degrades to "push disabled for this session" and
// logs instead of propagating storage errors to the caller.
type Registry struct {
	subs    repository.SubscriptionRepository
	evictor Evictor
	logger  *zap.Logger
}

func New(subs repository.SubscriptionRepository, evictor Evictor, logger *zap.Logger) *Registry {
	return &Registry{subs: subs, evictor: evictor, logger: logger}
}

// Register upserts the subscription keyed on (user_id, device_id) and then
// synchronously evicts the user's superseded subscriptions. Returns nil
// (not an error) when storage fails; the returned Subscription is nil in
// that case.
func (r *Registry) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Subscription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &domain.Subscription{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		DeviceID:   req.DeviceID,
		DeviceType: req.DeviceType,
		Endpoint:   req.Endpoint,
		P256dh:     req.P256dh,
		Auth:       req.Auth,
		IsActive:   true,
		LastSeen:   now,
		CreatedAt:  now,
	}

	if err := r.subs.Upsert(ctx, sub); err != nil {
		r.logger.Warn("subscription registration failed, push disabled for this session",
			zap.String("user_id", req.UserID),
			zap.String("device_id", req.DeviceID),
			zap.Error(err),
		)
		return nil, nil
	}

	// Bound the user's registry growth right away rather than waiting for
	// the scheduled sweep. A failed eviction is not a failed registration.
	if deleted, err := r.evictor.CleanupUser(ctx, req.UserID); err != nil {
		r.logger.Warn("post-registration eviction failed",
			zap.String("user_id", req.UserID), zap.Error(err))
	} else if deleted > 0 {
		r.logger.Info("evicted superseded subscriptions",
			zap.String("user_id", req.UserID), zap.Int("deleted", deleted))
	}

	return sub, nil
}

// Deactivate soft-deactivates the device's subscription on logout.
func (r *Registry) Deactivate(ctx context.Context, deviceID string) {
	if err := r.subs.Deactivate(ctx, deviceID); err != nil {
		r.logger.Warn("subscription deactivation failed",
			zap.String("device_id", deviceID), zap.Error(err))
	}
}

// Touch refreshes last_seen for the device, keeping it ahead of its
// siblings in the eviction ordering.
func (r *Registry) Touch(ctx context.Context, deviceID string) {
	if err := r.subs.Touch(ctx, deviceID, time.Now().UTC()); err != nil {
		r.logger.Warn("subscription touch failed",
			zap.String("device_id", deviceID), zap.Error(err))
	}
}

// Stats returns the operator-facing registry snapshot.
func (r *Registry) Stats(ctx context.Context) (domain.SubscriptionStats, error) {
	return r.subs.Stats(ctx)
}
