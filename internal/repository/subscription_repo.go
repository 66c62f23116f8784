package repository

import (
	"context"
	"time"

	"github.com/aqura-labs/pushrelay/internal/domain"
)

// SubscriptionRepository defines all persistence operations for push
// subscriptions. The pgx implementation is in pg_subscription_repo.go.
// Tests use a hand-written mock (mock_subscription_repo.go).
type SubscriptionRepository interface {
	// Upsert inserts a subscription or, when (user_id, device_id) already
	// exists, refreshes its endpoint, keys, device type, and last_seen and
	// reactivates it. The row keeps its original id on update.
	Upsert(ctx context.Context, s *domain.Subscription) error
	GetByID(ctx context.Context, id string) (*domain.Subscription, error)
	GetByDeviceID(ctx context.Context, deviceID string) (*domain.Subscription, error)
	Deactivate(ctx context.Context, deviceID string) error
	Touch(ctx context.Context, deviceID string, at time.Time) error

	// ActiveByUser returns the user's active subscriptions ordered by
	// last_seen descending (most recently seen first).
	ActiveByUser(ctx context.Context, userID string) ([]*domain.Subscription, error)
	// LatestActive returns the most recently seen active subscription for a
	// user, or domain.ErrNoActiveSubscription.
	LatestActive(ctx context.Context, userID string) (*domain.Subscription, error)
	UsersWithActive(ctx context.Context) ([]string, error)

	DeleteByIDs(ctx context.Context, ids []string) (int, error)
	DeleteInactiveOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	Stats(ctx context.Context) (domain.SubscriptionStats, error)
}
