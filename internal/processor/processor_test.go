package processor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aqura-labs/pushrelay/internal/delivery"
	"github.com/aqura-labs/pushrelay/internal/domain"
	"github.com/aqura-labs/pushrelay/internal/processor"
	"github.com/aqura-labs/pushrelay/internal/repository"
)

// stubChannel returns scripted results in order; the last result repeats.
type stubChannel struct {
	results []error
	calls   int
	seen    []*delivery.Delivery
}

func (s *stubChannel) Name() string { return "stub" }

func (s *stubChannel) Show(_ context.Context, d *delivery.Delivery) error {
	s.seen = append(s.seen, d)
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i]
}

var testCfg = processor.Config{
	PollInterval: time.Minute,
	ClaimBatch:   10,
	RetryBackoff: 10 * time.Second,
	FailedRowTTL: 30 * time.Minute,
}

func newProcessor(ch delivery.Channel) (*processor.Processor, *repository.MockQueueRepository, *repository.MockSubscriptionRepository) {
	queue := repository.NewMockQueueRepository()
	subs := repository.NewMockSubscriptionRepository()
	p := processor.New(queue, subs, ch, testCfg, processor.MetricHooks{}, zap.NewNop())
	return p, queue, subs
}

func seedSubscription(t *testing.T, subs *repository.MockSubscriptionRepository, id, userID, deviceID string) *domain.Subscription {
	t.Helper()
	s := &domain.Subscription{
		ID:         id,
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceType: domain.DeviceMobile,
		Endpoint:   "https://push.example.com/" + deviceID,
		P256dh:     "p256dh-key",
		Auth:       "auth-key",
		IsActive:   true,
		LastSeen:   time.Now().UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := subs.Upsert(context.Background(), s); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return s
}

func seedEntry(t *testing.T, queue *repository.MockQueueRepository, id, notificationID, userID, deviceID, subID string) {
	t.Helper()
	n, err := queue.CreateBatch(context.Background(), []*domain.QueueEntry{{
		ID:             id,
		NotificationID: notificationID,
		UserID:         userID,
		DeviceID:       deviceID,
		SubscriptionID: subID,
		Payload:        domain.Payload{Title: "T", Body: "B", Tag: domain.NotificationTag(notificationID)},
		Status:         domain.StatusPending,
		CreatedAt:      time.Now().UTC(),
	}})
	if err != nil || n != 1 {
		t.Fatalf("seed entry: n=%d err=%v", n, err)
	}
}

func TestProcessor_SuccessfulDelivery(t *testing.T) {
	ch := &stubChannel{results: []error{nil}}
	p, queue, subs := newProcessor(ch)
	seedSubscription(t, subs, "sub-1", "user-1", "dev-1")
	seedEntry(t, queue, "e-1", "n-1", "user-1", "dev-1", "sub-1")

	processed, err := p.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed, got %d", processed)
	}

	e := queue.Get("e-1")
	if e.Status != domain.StatusSent {
		t.Fatalf("expected status=sent, got %s", e.Status)
	}
	if e.SentAt == nil {
		t.Fatal("expected sent_at to be set")
	}
}

func TestProcessor_TransientFailureSchedulesRetry(t *testing.T) {
	ch := &stubChannel{results: []error{errors.New("push service returned 503")}}
	p, queue, subs := newProcessor(ch)
	seedSubscription(t, subs, "sub-1", "user-1", "dev-1")
	seedEntry(t, queue, "e-1", "n-1", "user-1", "dev-1", "sub-1")

	before := time.Now().UTC()
	if _, err := p.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := queue.Get("e-1")
	if e.Status != domain.StatusRetry {
		t.Fatalf("expected status=retry, got %s", e.Status)
	}
	if e.RetryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", e.RetryCount)
	}
	if e.NextRetryAt == nil {
		t.Fatal("expected next_retry_at to be set")
	}
	if got := e.NextRetryAt.Sub(before); got < 9*time.Second || got > 11*time.Second {
		t.Fatalf("expected ~10s backoff, got %s", got)
	}
}

func TestProcessor_RetryNotClaimedBeforeDue(t *testing.T) {
	ch := &stubChannel{results: []error{errors.New("boom")}}
	p, queue, subs := newProcessor(ch)
	seedSubscription(t, subs, "sub-1", "user-1", "dev-1")
	seedEntry(t, queue, "e-1", "n-1", "user-1", "dev-1", "sub-1")

	if _, err := p.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	// Second pass runs before the backoff has elapsed.
	processed, err := p.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if processed != 0 {
		t.Fatalf("expected 0 processed before backoff elapsed, got %d", processed)
	}
	if ch.calls != 1 {
		t.Fatalf("expected 1 delivery attempt, got %d", ch.calls)
	}
}

func TestProcessor_RetriesExhaustedMarksFailed(t *testing.T) {
	ch := &stubChannel{results: []error{errors.New("still down")}}
	p, queue, subs := newProcessor(ch)
	seedSubscription(t, subs, "sub-1", "user-1", "dev-1")
	seedEntry(t, queue, "e-1", "n-1", "user-1", "dev-1", "sub-1")

	// Drive the entry through all retries by rewinding next_retry_at.
	for i := 0; i < domain.MaxRetries+1; i++ {
		if _, err := p.ProcessOnce(context.Background()); err != nil {
			t.Fatalf("pass %d: %v", i, err)
		}
		if e := queue.Get("e-1"); e.Status == domain.StatusRetry {
			past := time.Now().UTC().Add(-time.Second)
			if err := queue.ScheduleRetry(context.Background(), "e-1", e.RetryCount, past, *e.ErrorMessage); err != nil {
				t.Fatalf("rewind retry: %v", err)
			}
		}
	}

	e := queue.Get("e-1")
	if e.Status != domain.StatusFailed {
		t.Fatalf("expected status=failed after retries exhausted, got %s (retry_count=%d)", e.Status, e.RetryCount)
	}
	if e.RetryCount != domain.MaxRetries {
		t.Fatalf("expected retry_count=%d, got %d", domain.MaxRetries, e.RetryCount)
	}
	if e.FailedAt == nil {
		t.Fatal("expected failed_at to be set")
	}
}

func TestProcessor_PermanentErrorFailsWithoutRetry(t *testing.T) {
	ch := &stubChannel{results: []error{delivery.Permanent(errors.New("subscription expired: push service returned 410"))}}
	p, queue, subs := newProcessor(ch)
	seedSubscription(t, subs, "sub-1", "user-1", "dev-1")
	seedEntry(t, queue, "e-1", "n-1", "user-1", "dev-1", "sub-1")

	if _, err := p.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := queue.Get("e-1")
	if e.Status != domain.StatusFailed {
		t.Fatalf("expected status=failed, got %s", e.Status)
	}
	if e.RetryCount != 0 {
		t.Fatalf("expected retry_count unchanged (0), got %d", e.RetryCount)
	}
}

func TestProcessor_MissingSubscriptionReboundToFreshest(t *testing.T) {
	ch := &stubChannel{results: []error{nil}}
	p, queue, subs := newProcessor(ch)
	// The entry points at a subscription that no longer exists, but the
	// user has registered a new device since.
	fresh := seedSubscription(t, subs, "sub-new", "user-1", "dev-new")
	seedEntry(t, queue, "e-1", "n-1", "user-1", "dev-old", "sub-gone")

	if _, err := p.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := queue.Get("e-1")
	if e.Status != domain.StatusSent {
		t.Fatalf("expected status=sent after rebind, got %s", e.Status)
	}
	if e.SubscriptionID != fresh.ID || e.DeviceID != fresh.DeviceID {
		t.Fatalf("expected entry rebound to %s/%s, got %s/%s",
			fresh.ID, fresh.DeviceID, e.SubscriptionID, e.DeviceID)
	}
	if len(ch.seen) != 1 || ch.seen[0].Subscription.ID != fresh.ID {
		t.Fatal("expected delivery to use the rebound subscription")
	}
}

func TestProcessor_NoActiveSubscriptionFailsImmediately(t *testing.T) {
	ch := &stubChannel{results: []error{nil}}
	p, queue, _ := newProcessor(ch)
	seedEntry(t, queue, "e-1", "n-1", "user-1", "dev-1", "sub-gone")

	if _, err := p.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := queue.Get("e-1")
	if e.Status != domain.StatusFailed {
		t.Fatalf("expected status=failed, got %s", e.Status)
	}
	if e.RetryCount != 0 {
		t.Fatalf("expected retry_count unchanged, got %d", e.RetryCount)
	}
	if ch.calls != 0 {
		t.Fatalf("expected no delivery attempt, got %d", ch.calls)
	}
}

func TestProcessor_DedupAfterSent(t *testing.T) {
	ch := &stubChannel{results: []error{nil}}
	p, queue, subs := newProcessor(ch)
	seedSubscription(t, subs, "sub-1", "user-1", "dev-1")
	seedSubscription(t, subs, "sub-2", "user-1", "dev-2")

	// Two live copies of the same notification on different devices, plus
	// an old failed entry from another notification.
	seedEntry(t, queue, "e-1", "n-1", "user-1", "dev-1", "sub-1")
	seedEntry(t, queue, "e-2", "n-1", "user-1", "dev-2", "sub-2")
	seedEntry(t, queue, "e-old", "n-0", "user-1", "dev-1", "sub-1")
	if err := queue.MarkFailed(context.Background(), "e-old", "gone", time.Now().UTC()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if _, err := p.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The sibling copy was deleted by the dedup sweep before its turn in
	// the batch, so only the first entry gets a delivery attempt.
	if ch.calls != 1 {
		t.Fatalf("expected 1 delivery attempt, got %d", ch.calls)
	}

	remaining := queue.ByUser("user-1")
	if len(remaining) != 1 {
		t.Fatalf("expected exactly 1 remaining entry after dedup, got %d", len(remaining))
	}
	if remaining[0].Status != domain.StatusSent {
		t.Fatalf("expected the surviving entry to be sent, got %s", remaining[0].Status)
	}
}

func TestProcessor_FailedSweepBeforeClaim(t *testing.T) {
	ch := &stubChannel{results: []error{nil}}
	p, queue, _ := newProcessor(ch)

	old, err := queue.CreateBatch(context.Background(), []*domain.QueueEntry{{
		ID:             "e-stale",
		NotificationID: "n-0",
		UserID:         "user-1",
		DeviceID:       "dev-1",
		SubscriptionID: "sub-1",
		Status:         domain.StatusPending,
		CreatedAt:      time.Now().UTC().Add(-time.Hour),
	}})
	if err != nil || old != 1 {
		t.Fatalf("seed stale entry: n=%d err=%v", old, err)
	}
	if err := queue.MarkFailed(context.Background(), "e-stale", "gone", time.Now().UTC()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	if _, err := p.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e := queue.Get("e-stale"); e != nil {
		t.Fatalf("expected stale failed entry swept, still present with status %s", e.Status)
	}
}

func TestProcessor_StorageFailureDoesNotAbortBatch(t *testing.T) {
	ch := &stubChannel{results: []error{nil}}
	p, queue, subs := newProcessor(ch)
	seedSubscription(t, subs, "sub-1", "user-1", "dev-1")
	seedSubscription(t, subs, "sub-2", "user-2", "dev-2")
	seedEntry(t, queue, "e-1", "n-1", "user-1", "dev-1", "sub-1")
	seedEntry(t, queue, "e-2", "n-1", "user-2", "dev-2", "sub-2")

	queue.MarkSentErr = errors.New("db down")
	processed, err := p.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected both entries attempted, got %d", processed)
	}
	if ch.calls != 2 {
		t.Fatalf("expected 2 delivery attempts despite storage failure, got %d", ch.calls)
	}
}

func TestProcessor_ClaimOrderIsFIFO(t *testing.T) {
	ch := &stubChannel{results: []error{nil}}
	p, queue, subs := newProcessor(ch)
	seedSubscription(t, subs, "sub-1", "user-1", "dev-1")
	seedSubscription(t, subs, "sub-2", "user-2", "dev-2")

	newer := time.Now().UTC()
	older := newer.Add(-time.Minute)
	if n, err := queue.CreateBatch(context.Background(), []*domain.QueueEntry{
		{ID: "e-new", NotificationID: "n-2", UserID: "user-2", DeviceID: "dev-2", SubscriptionID: "sub-2", Status: domain.StatusPending, CreatedAt: newer},
		{ID: "e-old", NotificationID: "n-1", UserID: "user-1", DeviceID: "dev-1", SubscriptionID: "sub-1", Status: domain.StatusPending, CreatedAt: older},
	}); err != nil || n != 2 {
		t.Fatalf("seed: n=%d err=%v", n, err)
	}

	if _, err := p.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ch.seen) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(ch.seen))
	}
	if ch.seen[0].Subscription.UserID != "user-1" {
		t.Fatal("expected the older entry to be delivered first")
	}
}
