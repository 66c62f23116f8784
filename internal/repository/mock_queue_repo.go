package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aqura-labs/pushrelay/internal/domain"
)

// MockQueueRepository is a hand-written, in-memory implementation of
// QueueRepository used in unit tests.
type MockQueueRepository struct {
	mu      sync.RWMutex
	entries map[string]*domain.QueueEntry

	// Optional error overrides — set in tests to simulate failure paths.
	ClaimErr    error
	MarkSentErr error
}

func NewMockQueueRepository() *MockQueueRepository {
	return &MockQueueRepository{
		entries: make(map[string]*domain.QueueEntry),
	}
}

func (m *MockQueueRepository) CreateBatch(_ context.Context, entries []*domain.QueueEntry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, e := range entries {
		if m.hasLiveIdentity(e.NotificationID, e.UserID, e.DeviceID) {
			continue
		}
		clone := *e
		m.entries[e.ID] = &clone
		inserted++
	}
	return inserted, nil
}

// hasLiveIdentity mirrors the partial unique index over non-terminal rows.
func (m *MockQueueRepository) hasLiveIdentity(notificationID, userID, deviceID string) bool {
	for _, e := range m.entries {
		if e.NotificationID == notificationID && e.UserID == userID &&
			e.DeviceID == deviceID && !e.Status.IsTerminal() {
			return true
		}
	}
	return false
}

func (m *MockQueueRepository) ClaimDue(_ context.Context, now time.Time, limit int) ([]*domain.QueueEntry, error) {
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []*domain.QueueEntry
	for _, e := range m.entries {
		if e.Status == domain.StatusPending ||
			(e.Status == domain.StatusRetry && e.NextRetryAt != nil && !e.NextRetryAt.After(now)) {
			clone := *e
			due = append(due, &clone)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MockQueueRepository) MarkProcessing(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = domain.StatusProcessing
	e.LastAttemptAt = &at
	return nil
}

func (m *MockQueueRepository) MarkSent(_ context.Context, id string, at time.Time) error {
	if m.MarkSentErr != nil {
		return m.MarkSentErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.Status = domain.StatusSent
		e.SentAt = &at
		e.NextRetryAt = nil
		e.ErrorMessage = nil
	}
	return nil
}

func (m *MockQueueRepository) ScheduleRetry(_ context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.Status = domain.StatusRetry
		e.RetryCount = retryCount
		e.NextRetryAt = &nextRetry
		e.ErrorMessage = &errMsg
	}
	return nil
}

func (m *MockQueueRepository) MarkFailed(_ context.Context, id, errMsg string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.Status = domain.StatusFailed
		e.ErrorMessage = &errMsg
		e.FailedAt = &at
		e.NextRetryAt = nil
	}
	return nil
}

func (m *MockQueueRepository) Rebind(_ context.Context, id, subscriptionID, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.SubscriptionID = subscriptionID
		e.DeviceID = deviceID
	}
	return nil
}

func (m *MockQueueRepository) DeleteUserRedundant(_ context.Context, userID, keepID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, e := range m.entries {
		if e.UserID != userID || id == keepID {
			continue
		}
		if !e.Status.IsTerminal() || e.Status == domain.StatusFailed {
			delete(m.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockQueueRepository) DeleteFailedOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, e := range m.entries {
		if e.Status == domain.StatusFailed && e.CreatedAt.Before(cutoff) {
			delete(m.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockQueueRepository) DeleteTerminalOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, e := range m.entries {
		if e.Status.IsTerminal() && e.CreatedAt.Before(cutoff) {
			delete(m.entries, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockQueueRepository) CountByStatus(_ context.Context) (map[domain.Status]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.Status]int)
	for _, e := range m.entries {
		counts[e.Status]++
	}
	return counts, nil
}

// ---- test helpers ----

// Get returns the entry by id, or nil.
func (m *MockQueueRepository) Get(id string) *domain.QueueEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.entries[id]; ok {
		clone := *e
		return &clone
	}
	return nil
}

// All returns every stored entry.
func (m *MockQueueRepository) All() []*domain.QueueEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.QueueEntry
	for _, e := range m.entries {
		clone := *e
		result = append(result, &clone)
	}
	return result
}

// ByUser returns every stored entry for one user.
func (m *MockQueueRepository) ByUser(userID string) []*domain.QueueEntry {
	var result []*domain.QueueEntry
	for _, e := range m.All() {
		if e.UserID == userID {
			result = append(result, e)
		}
	}
	return result
}
