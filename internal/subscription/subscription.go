// Package subscription stores which users hold an active subscription.
// Backends register themselves by name and are selected through configuration.
package subscription

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"jusdown/internal/config"
	"jusdown/internal/entity"
	"jusdown/internal/errs"
)

// Provider reads and writes subscription state.
type Provider interface {
	Status(ctx context.Context, userID string) (entity.SubscriptionStatus, error)
	SetSubscribed(ctx context.Context, userID string, subscribed bool) error
	Close() error
}

// Constructor builds a Provider from configuration.
type Constructor func(ctx context.Context, cfg config.Subscription) (Provider, error)

var (
	mu           sync.RWMutex
	constructors = make(map[string]Constructor)
)

// Register makes a provider available under name.
// It panics if the name is already registered or c is nil.
func Register(name string, c Constructor) {
	mu.Lock()
	defer mu.Unlock()

	if c == nil {
		panic("subscription: Register constructor is nil")
	}

	if _, exists := constructors[name]; exists {
		panic(fmt.Sprintf("subscription: provider %q already registered", name))
	}

	constructors[name] = c
}

// New creates the provider named by cfg.Provider.
func New(ctx context.Context, cfg config.Subscription) (Provider, error) {
	mu.RLock()
	c, ok := constructors[cfg.Provider]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%q (registered: %v): %w", cfg.Provider, RegisteredProviders(), errs.ErrUnknownProvider)
	}

	p, err := c(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("subscription provider %s: %w", cfg.Provider, err)
	}

	return p, nil
}

// RegisteredProviders returns the sorted provider names.
func RegisteredProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
