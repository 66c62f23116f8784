package repository

import (
	"context"
	"time"

	"github.com/aqura-labs/pushrelay/internal/domain"
)

// QueueRepository defines all persistence operations for the notification
// queue. Every mutation is a single-row update scoped by id (or a scoped
// delete), so concurrent processor instances converge without coordination.
type QueueRepository interface {
	// CreateBatch inserts the given entries, skipping any whose
	// (notification_id, user_id, device_id) identity already has a
	// non-terminal row. Returns the number actually inserted.
	CreateBatch(ctx context.Context, entries []*domain.QueueEntry) (int, error)

	// ClaimDue returns entries ready for an attempt: status=pending, or
	// status=retry with next_retry_at due. Oldest created_at first, at most
	// limit rows.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.QueueEntry, error)

	MarkProcessing(ctx context.Context, id string, at time.Time) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error
	MarkFailed(ctx context.Context, id, errMsg string, at time.Time) error

	// Rebind points an entry at a different subscription, used when the
	// original endpoint has gone away but the user has a fresher one.
	Rebind(ctx context.Context, id, subscriptionID, deviceID string) error

	// DeleteUserRedundant removes, for one user, every non-terminal entry
	// except keepID plus all failed entries regardless of notification.
	// Called after a successful send; returns rows deleted.
	DeleteUserRedundant(ctx context.Context, userID, keepID string) (int, error)

	DeleteFailedOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	CountByStatus(ctx context.Context) (map[domain.Status]int, error)
}
