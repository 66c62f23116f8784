package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/domain"
	"github.com/aqura-labs/pushrelay/internal/repository"
)

const (
	defaultIcon  = "/icons/icon-192x192.png"
	defaultBadge = "/icons/badge-72x72.png"
)

// Materializer turns a notification record plus a recipient set into pending
// queue entries, one per (recipient, active subscription). Re-materializing
// while a live entry exists for the same identity is a no-op for that row.
type Materializer struct {
	queue  repository.QueueRepository
	subs   repository.SubscriptionRepository
	logger *zap.Logger
}

func NewMaterializer(queue repository.QueueRepository, subs repository.SubscriptionRepository, logger *zap.Logger) *Materializer {
	return &Materializer{queue: queue, subs: subs, logger: logger}
}

// Materialize returns the number of entries actually created. Recipients
// without active subscriptions are skipped, not errors.
func (m *Materializer) Materialize(ctx context.Context, record *domain.NotificationRecord, recipientUserIDs []string) (int, error) {
	req := domain.MaterializeRequest{
		NotificationID:   record.ID,
		RecipientUserIDs: recipientUserIDs,
	}
	if err := req.Validate(); err != nil {
		return 0, err
	}

	payload := buildPayload(record)
	now := time.Now().UTC()

	var entries []*domain.QueueEntry
	for _, userID := range recipientUserIDs {
		subs, err := m.subs.ActiveByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return 0, fmt.Errorf("fetch subscriptions for user %s: %w", userID, err)
		}
		for _, sub := range subs {
			entries = append(entries, &domain.QueueEntry{
				ID:             uuid.New().String(),
				NotificationID: record.ID,
				UserID:         userID,
				DeviceID:       sub.DeviceID,
				SubscriptionID: sub.ID,
				Payload:        payload,
				Status:         domain.StatusPending,
				CreatedAt:      now,
			})
		}
	}

	if len(entries) == 0 {
		m.logger.Info("no active subscriptions among recipients",
			zap.String("notification_id", record.ID),
			zap.Int("recipients", len(recipientUserIDs)))
		return 0, nil
	}

	created, err := m.queue.CreateBatch(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("create queue entries: %w", err)
	}

	m.logger.Info("notification materialized",
		zap.String("notification_id", record.ID),
		zap.Int("recipients", len(recipientUserIDs)),
		zap.Int("entries", created))
	return created, nil
}

// buildPayload denormalizes the record onto the entry so delivery never
// needs the record again.
func buildPayload(record *domain.NotificationRecord) domain.Payload {
	data := record.Data
	if data.Type == "" {
		data.Type = record.Type
	}
	if data.Priority == "" {
		data.Priority = record.Priority
	}
	return domain.Payload{
		Title: record.Title,
		Body:  record.Body,
		Icon:  defaultIcon,
		Badge: defaultBadge,
		Tag:   domain.NotificationTag(record.ID),
		Data:  data,
	}
}
