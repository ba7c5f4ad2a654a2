package subscription

import (
	"context"
	"sync"

	"jusdown/internal/config"
	"jusdown/internal/entity"
)

func init() {
	Register("memory", func(context.Context, config.Subscription) (Provider, error) {
		return NewMemory(), nil
	})
}

// Memory keeps subscriptions in process. State is lost on restart.
type Memory struct {
	mu    sync.RWMutex
	users map[string]bool
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]bool)}
}

// Status implements Provider.
func (m *Memory) Status(_ context.Context, userID string) (entity.SubscriptionStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subscribed, ok := m.users[userID]

	return entity.SubscriptionStatus{Exists: ok, Subscribed: subscribed}, nil
}

// SetSubscribed implements Provider.
func (m *Memory) SetSubscribed(_ context.Context, userID string, subscribed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users[userID] = subscribed

	return nil
}

// Close implements Provider.
func (m *Memory) Close() error { return nil }
