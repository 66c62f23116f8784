package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aqura-labs/pushrelay/internal/domain"
)

// MockSubscriptionRepository is a hand-written, in-memory implementation of
// SubscriptionRepository used in unit tests. No mock-generation library needed.
type MockSubscriptionRepository struct {
	mu   sync.RWMutex
	subs map[string]*domain.Subscription // keyed by id

	// Optional error overrides — set in tests to simulate failure paths.
	UpsertErr       error
	ActiveByUserErr map[string]error // per-user errors for eviction tests
	DeleteErr       error
}

func NewMockSubscriptionRepository() *MockSubscriptionRepository {
	return &MockSubscriptionRepository{
		subs: make(map[string]*domain.Subscription),
	}
}

func (m *MockSubscriptionRepository) Upsert(_ context.Context, s *domain.Subscription) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.subs {
		if existing.UserID == s.UserID && existing.DeviceID == s.DeviceID {
			existing.DeviceType = s.DeviceType
			existing.Endpoint = s.Endpoint
			existing.P256dh = s.P256dh
			existing.Auth = s.Auth
			existing.IsActive = true
			existing.LastSeen = s.LastSeen
			s.ID = existing.ID
			return nil
		}
	}
	clone := *s
	m.subs[s.ID] = &clone
	return nil
}

func (m *MockSubscriptionRepository) GetByID(_ context.Context, id string) (*domain.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (m *MockSubscriptionRepository) GetByDeviceID(_ context.Context, deviceID string) (*domain.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.subs {
		if s.DeviceID == deviceID {
			clone := *s
			return &clone, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepository) Deactivate(_ context.Context, deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.DeviceID == deviceID {
			s.IsActive = false
		}
	}
	return nil
}

func (m *MockSubscriptionRepository) Touch(_ context.Context, deviceID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.DeviceID == deviceID {
			s.LastSeen = at
		}
	}
	return nil
}

func (m *MockSubscriptionRepository) ActiveByUser(_ context.Context, userID string) ([]*domain.Subscription, error) {
	if err := m.ActiveByUserErr[userID]; err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Subscription
	for _, s := range m.subs {
		if s.UserID == userID && s.IsActive {
			clone := *s
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LastSeen.After(result[j].LastSeen)
	})
	return result, nil
}

func (m *MockSubscriptionRepository) LatestActive(ctx context.Context, userID string) (*domain.Subscription, error) {
	subs, err := m.ActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, domain.ErrNoActiveSubscription
	}
	return subs[0], nil
}

func (m *MockSubscriptionRepository) UsersWithActive(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var users []string
	for _, s := range m.subs {
		if s.IsActive && !seen[s.UserID] {
			seen[s.UserID] = true
			users = append(users, s.UserID)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (m *MockSubscriptionRepository) DeleteByIDs(_ context.Context, ids []string) (int, error) {
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockSubscriptionRepository) DeleteInactiveOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for id, s := range m.subs {
		if !s.IsActive && s.LastSeen.Before(cutoff) {
			delete(m.subs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MockSubscriptionRepository) Stats(_ context.Context) (domain.SubscriptionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st domain.SubscriptionStats
	users := make(map[string]bool)
	for _, s := range m.subs {
		st.Total++
		if s.IsActive {
			st.Active++
			users[s.UserID] = true
			switch s.DeviceType {
			case domain.DeviceMobile:
				st.Mobile++
			case domain.DeviceDesktop:
				st.Desktop++
			}
		} else {
			st.Inactive++
		}
	}
	st.UsersWithSubscriptions = len(users)
	return st, nil
}

// All returns every stored subscription; test helper only.
func (m *MockSubscriptionRepository) All() []*domain.Subscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Subscription
	for _, s := range m.subs {
		clone := *s
		result = append(result, &clone)
	}
	return result
}
