package processor_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/domain"
	"github.com/aqura-labs/pushrelay/internal/processor"
	"github.com/aqura-labs/pushrelay/internal/repository"
)

func newMaterializer() (*processor.Materializer, *repository.MockQueueRepository, *repository.MockSubscriptionRepository) {
	queue := repository.NewMockQueueRepository()
	subs := repository.NewMockSubscriptionRepository()
	return processor.NewMaterializer(queue, subs, zap.NewNop()), queue, subs
}

func testRecord(id string) *domain.NotificationRecord {
	return &domain.NotificationRecord{
		ID:        id,
		Title:     "Task assigned",
		Body:      "You have a new task",
		Type:      domain.TypeTaskAssigned,
		Priority:  domain.PriorityHigh,
		Data:      domain.PayloadData{EntityID: "task-42"},
		CreatedAt: time.Now().UTC(),
	}
}

func TestMaterializer_OneEntryPerActiveSubscription(t *testing.T) {
	m, queue, subs := newMaterializer()
	seedSubscription(t, subs, "sub-1", "user-1", "dev-1")
	seedSubscription(t, subs, "sub-2", "user-1", "dev-2")
	seedSubscription(t, subs, "sub-3", "user-2", "dev-3")

	created, err := m.Materialize(context.Background(), testRecord("n-1"), []string{"user-1", "user-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 3 {
		t.Fatalf("expected 3 entries, got %d", created)
	}

	for _, e := range queue.All() {
		if e.Status != domain.StatusPending {
			t.Fatalf("expected pending, got %s", e.Status)
		}
		if e.Payload.Tag != domain.NotificationTag("n-1") {
			t.Fatalf("unexpected tag %q", e.Payload.Tag)
		}
		if e.Payload.Data.Type != domain.TypeTaskAssigned {
			t.Fatalf("expected type copied onto payload data, got %q", e.Payload.Data.Type)
		}
		if e.Payload.Data.Priority != domain.PriorityHigh {
			t.Fatalf("expected priority copied onto payload data, got %q", e.Payload.Data.Priority)
		}
	}
}

func TestMaterializer_IdempotentWhileEntriesLive(t *testing.T) {
	m, queue, subs := newMaterializer()
	seedSubscription(t, subs, "sub-1", "user-1", "dev-1")

	if created, err := m.Materialize(context.Background(), testRecord("n-1"), []string{"user-1"}); err != nil || created != 1 {
		t.Fatalf("first call: created=%d err=%v", created, err)
	}
	created, err := m.Materialize(context.Background(), testRecord("n-1"), []string{"user-1"})
	if err != nil {
		t.Fatalf("second call: unexpected error: %v", err)
	}
	if created != 0 {
		t.Fatalf("expected 0 new entries while the first is live, got %d", created)
	}
	if got := len(queue.All()); got != 1 {
		t.Fatalf("expected 1 stored entry, got %d", got)
	}
}

func TestMaterializer_RecipientWithoutSubscriptionsSkipped(t *testing.T) {
	m, queue, subs := newMaterializer()
	seedSubscription(t, subs, "sub-1", "user-1", "dev-1")

	created, err := m.Materialize(context.Background(), testRecord("n-1"), []string{"user-1", "user-ghost"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 entry, got %d", created)
	}
	if got := len(queue.ByUser("user-ghost")); got != 0 {
		t.Fatalf("expected no entries for user without subscriptions, got %d", got)
	}
}

func TestMaterializer_Validation(t *testing.T) {
	m, _, _ := newMaterializer()
	ctx := context.Background()

	if _, err := m.Materialize(ctx, testRecord(""), []string{"user-1"}); err != domain.ErrInvalidNotificationID {
		t.Fatalf("expected ErrInvalidNotificationID, got %v", err)
	}
	if _, err := m.Materialize(ctx, testRecord("n-1"), nil); err != domain.ErrNoRecipients {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}
