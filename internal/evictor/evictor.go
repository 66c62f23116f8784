package evictor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/domain"
	"github.com/aqura-labs/pushrelay/internal/ratelimiter"
	"github.com/aqura-labs/pushrelay/internal/repository"
)

// Evictor bounds registry growth: after it runs, a user holds at most one
// active subscription per device type (the most recently seen one).
type Evictor struct {
	subs   repository.SubscriptionRepository
	pacer  *ratelimiter.Pacer
	logger *zap.Logger
}

// SweepReport aggregates the outcome of a full-registry sweep. Per-user
// failures are collected, never propagated: one broken user must not stop
// cleanup for the rest.
type SweepReport struct {
	UsersProcessed int
	TotalDeleted   int
	Errors         []error
}

func New(subs repository.SubscriptionRepository, pacer *ratelimiter.Pacer, logger *zap.Logger) *Evictor {
	return &Evictor{subs: subs, pacer: pacer, logger: logger}
}

// CleanupUser keeps the single most-recent active subscription per device
// type for one user and hard-deletes the remainder. Returns rows deleted.
func (e *Evictor) CleanupUser(ctx context.Context, userID string) (int, error) {
	subs, err := e.subs.ActiveByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("fetch active subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return 0, nil
	}

	// subs is ordered last_seen descending, so the first of each device
	// type is the survivor.
	kept := make(map[domain.DeviceType]bool, 2)
	var victims []string
	for _, s := range subs {
		if !kept[s.DeviceType] {
			kept[s.DeviceType] = true
			continue
		}
		victims = append(victims, s.ID)
	}

	if len(victims) == 0 {
		return 0, nil
	}

	deleted, err := e.subs.DeleteByIDs(ctx, victims)
	if err != nil {
		return 0, fmt.Errorf("delete superseded subscriptions: %w", err)
	}
	return deleted, nil
}

// SweepAll runs CleanupUser for every user that has active subscriptions,
// paced so a large registry does not overload the database. The report is
// always returned, even when some users failed.
func (e *Evictor) SweepAll(ctx context.Context) SweepReport {
	var report SweepReport

	users, err := e.subs.UsersWithActive(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("list users: %w", err))
		return report
	}

	for _, userID := range users {
		if err := e.pacer.Wait(ctx); err != nil {
			// ctx cancelled — shutdown in progress.
			report.Errors = append(report.Errors, err)
			return report
		}

		deleted, err := e.CleanupUser(ctx, userID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("user %s: %w", userID, err))
			e.logger.Warn("subscription sweep failed for user",
				zap.String("user_id", userID), zap.Error(err))
			continue
		}
		report.UsersProcessed++
		report.TotalDeleted += deleted
	}

	e.logger.Info("subscription sweep complete",
		zap.Int("users", report.UsersProcessed),
		zap.Int("deleted", report.TotalDeleted),
		zap.Int("errors", len(report.Errors)),
	)
	return report
}

// CleanupInactive hard-deletes deactivated subscriptions not seen for the
// given duration (stale logout leftovers).
func (e *Evictor) CleanupInactive(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	deleted, err := e.subs.DeleteInactiveOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		e.logger.Info("deleted stale inactive subscriptions", zap.Int("deleted", deleted))
	}
	return deleted, nil
}
