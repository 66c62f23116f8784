package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqura-labs/pushrelay/internal/domain"
)

type pgSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPgSubscriptionRepository returns a SubscriptionRepository backed by PostgreSQL.
func NewPgSubscriptionRepository(pool *pgxpool.Pool) SubscriptionRepository {
	return &pgSubscriptionRepository{pool: pool}
}

func (r *pgSubscriptionRepository) Upsert(ctx context.Context, s *domain.Subscription) error {
	// On conflict the row keeps its original id; RETURNING feeds that id
	// back so the caller never hands out an id that is not in the table.
	err := r.pool.QueryRow(ctx, `
		INSERT INTO push_subscriptions
			(id, user_id, device_id, device_type, endpoint, p256dh, auth,
			 is_active, last_seen, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			device_type = EXCLUDED.device_type,
			endpoint    = EXCLUDED.endpoint,
			p256dh      = EXCLUDED.p256dh,
			auth        = EXCLUDED.auth,
			is_active   = TRUE,
			last_seen   = EXCLUDED.last_seen
		RETURNING id`,
		s.ID, s.UserID, s.DeviceID, s.DeviceType, s.Endpoint, s.P256dh, s.Auth,
		s.IsActive, s.LastSeen, s.CreatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (r *pgSubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	row := r.pool.QueryRow(ctx, selectSubscription+` WHERE id = $1`, id)
	s, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *pgSubscriptionRepository) GetByDeviceID(ctx context.Context, deviceID string) (*domain.Subscription, error) {
	row := r.pool.QueryRow(ctx, selectSubscription+` WHERE device_id = $1`, deviceID)
	s, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return s, err
}

func (r *pgSubscriptionRepository) Deactivate(ctx context.Context, deviceID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE push_subscriptions SET is_active = FALSE WHERE device_id = $1`, deviceID)
	return err
}

func (r *pgSubscriptionRepository) Touch(ctx context.Context, deviceID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE push_subscriptions SET last_seen = $1 WHERE device_id = $2`, at, deviceID)
	return err
}

func (r *pgSubscriptionRepository) ActiveByUser(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	rows, err := r.pool.Query(ctx, selectSubscription+`
		WHERE user_id = $1 AND is_active
		ORDER BY last_seen DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("active subscriptions for user: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

func (r *pgSubscriptionRepository) LatestActive(ctx context.Context, userID string) (*domain.Subscription, error) {
	row := r.pool.QueryRow(ctx, selectSubscription+`
		WHERE user_id = $1 AND is_active
		ORDER BY last_seen DESC
		LIMIT 1`, userID)
	s, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoActiveSubscription
	}
	return s, err
}

func (r *pgSubscriptionRepository) UsersWithActive(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT user_id FROM push_subscriptions WHERE is_active`)
	if err != nil {
		return nil, fmt.Errorf("users with active subscriptions: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (r *pgSubscriptionRepository) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete subscriptions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgSubscriptionRepository) DeleteInactiveOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE NOT is_active AND last_seen < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete inactive subscriptions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgSubscriptionRepository) Stats(ctx context.Context) (domain.SubscriptionStats, error) {
	var st domain.SubscriptionStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE NOT is_active),
			COUNT(*) FILTER (WHERE is_active AND device_type = 'mobile'),
			COUNT(*) FILTER (WHERE is_active AND device_type = 'desktop'),
			COUNT(DISTINCT user_id) FILTER (WHERE is_active)
		FROM push_subscriptions`).Scan(
		&st.Total, &st.Active, &st.Inactive, &st.Mobile, &st.Desktop, &st.UsersWithSubscriptions,
	)
	if err != nil {
		return domain.SubscriptionStats{}, fmt.Errorf("subscription stats: %w", err)
	}
	return st, nil
}

// ---- helpers ----

const selectSubscription = `
	SELECT id, user_id, device_id, device_type, endpoint, p256dh, auth,
	       is_active, last_seen, created_at
	FROM push_subscriptions`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.ID, &s.UserID, &s.DeviceID, &s.DeviceType, &s.Endpoint,
		&s.P256dh, &s.Auth, &s.IsActive, &s.LastSeen, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSubscriptions(rows pgx.Rows) ([]*domain.Subscription, error) {
	var result []*domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}
