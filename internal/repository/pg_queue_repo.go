package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqura-labs/pushrelay/internal/domain"
)

type pgQueueRepository struct {
	pool *pgxpool.Pool
}

// NewPgQueueRepository returns a QueueRepository backed by PostgreSQL.
func NewPgQueueRepository(pool *pgxpool.Pool) QueueRepository {
	return &pgQueueRepository{pool: pool}
}

func (r *pgQueueRepository) CreateBatch(ctx context.Context, entries []*domain.QueueEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	inserted := 0
	for _, e := range entries {
		payload, err := json.Marshal(e.Payload)
		if err != nil {
			return inserted, fmt.Errorf("marshal payload: %w", err)
		}
		// The partial unique index on (notification_id, user_id, device_id)
		// over non-terminal rows makes re-materialization a no-op.
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO notification_queue
				(id, notification_id, user_id, device_id, subscription_id,
				 payload, status, retry_count, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (notification_id, user_id, device_id)
				WHERE status IN ('pending', 'processing', 'retry')
				DO NOTHING`,
			e.ID, e.NotificationID, e.UserID, e.DeviceID, e.SubscriptionID,
			payload, e.Status, e.RetryCount, e.CreatedAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert queue entry: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *pgQueueRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*domain.QueueEntry, error) {
	rows, err := r.pool.Query(ctx, selectQueueEntry+`
		WHERE status = 'pending'
		   OR (status = 'retry' AND next_retry_at <= $1)
		ORDER BY created_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due entries: %w", err)
	}
	defer rows.Close()
	return scanQueueEntries(rows)
}

func (r *pgQueueRepository) MarkProcessing(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'processing', last_attempt_at = $1
		WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	// Zero rows means the claimed entry was deleted in the meantime,
	// typically by a sibling's post-send dedup sweep.
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pgQueueRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'sent', sent_at = $1, next_retry_at = NULL, error_message = NULL
		WHERE id = $2`, at, id)
	return err
}

func (r *pgQueueRepository) ScheduleRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'retry', retry_count = $1, next_retry_at = $2, error_message = $3
		WHERE id = $4`, retryCount, nextRetry, errMsg, id)
	return err
}

func (r *pgQueueRepository) MarkFailed(ctx context.Context, id, errMsg string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_queue
		SET status = 'failed', error_message = $1, failed_at = $2, next_retry_at = NULL
		WHERE id = $3`, errMsg, at, id)
	return err
}

func (r *pgQueueRepository) Rebind(ctx context.Context, id, subscriptionID, deviceID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE notification_queue
		SET subscription_id = $1, device_id = $2
		WHERE id = $3`, subscriptionID, deviceID, id)
	return err
}

func (r *pgQueueRepository) DeleteUserRedundant(ctx context.Context, userID, keepID string) (int, error) {
	// Once the user has seen any notification, sibling attempts on other
	// devices and stale failures for that user are pure waste. The failed
	// clause is deliberately not scoped to one notification_id.
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notification_queue
		WHERE user_id = $1
		  AND id <> $2
		  AND status IN ('pending', 'processing', 'retry', 'failed')`,
		userID, keepID)
	if err != nil {
		return 0, fmt.Errorf("dedup sweep for user: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgQueueRepository) DeleteFailedOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notification_queue
		WHERE status = 'failed' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("preventive failed sweep: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgQueueRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM notification_queue
		WHERE status IN ('sent', 'failed') AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("terminal row sweep: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgQueueRepository) CountByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM notification_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var s domain.Status
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

// ---- helpers ----

const selectQueueEntry = `
	SELECT id, notification_id, user_id, device_id, subscription_id, payload,
	       status, retry_count, next_retry_at, last_attempt_at, error_message,
	       created_at, sent_at, failed_at
	FROM notification_queue`

func scanQueueEntry(row pgx.Row) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	var payload []byte
	err := row.Scan(
		&e.ID, &e.NotificationID, &e.UserID, &e.DeviceID, &e.SubscriptionID,
		&payload, &e.Status, &e.RetryCount, &e.NextRetryAt, &e.LastAttemptAt,
		&e.ErrorMessage, &e.CreatedAt, &e.SentAt, &e.FailedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(payload, &e.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &e, nil
}

func scanQueueEntries(rows pgx.Rows) ([]*domain.QueueEntry, error) {
	var result []*domain.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}
