package subscription_test

import (
	"errors"
	"os"
	"slices"
	"testing"

	"jusdown/internal/config"
	"jusdown/internal/entity"
	"jusdown/internal/errs"
	"jusdown/internal/subscription"
)

func TestRegisteredProviders(t *testing.T) {
	t.Parallel()

	want := []string{"memory", "postgres", "redis"}
	if got := subscription.RegisteredProviders(); !slices.Equal(got, want) {
		t.Errorf("RegisteredProviders() = %v, want %v", got, want)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	t.Parallel()

	_, err := subscription.New(t.Context(), config.Subscription{Provider: "dynamo"})
	if !errors.Is(err, errs.ErrUnknownProvider) {
		t.Errorf("New() error = %v, want %v", err, errs.ErrUnknownProvider)
	}
}

func TestNewPostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, err := subscription.New(t.Context(), config.Subscription{Provider: "postgres"}); err == nil {
		t.Error("New(postgres) without dsn succeeded")
	}
}

func TestRegisterDuplicatePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("Register() of a taken name did not panic")
		}
	}()

	subscription.Register("memory", nil)
}

// exercise runs the same lifecycle against any provider.
func exercise(t *testing.T, p subscription.Provider) {
	t.Helper()

	ctx := t.Context()

	got, err := p.Status(ctx, "nobody")
	if err != nil || got != (entity.SubscriptionStatus{}) {
		t.Fatalf("Status(unknown) = %+v, %v", got, err)
	}

	if err := p.SetSubscribed(ctx, "user-1", true); err != nil {
		t.Fatalf("SetSubscribed(true) failed: %v", err)
	}

	got, err = p.Status(ctx, "user-1")
	if err != nil || got != (entity.SubscriptionStatus{Exists: true, Subscribed: true}) {
		t.Fatalf("Status(after charge) = %+v, %v", got, err)
	}

	if err := p.SetSubscribed(ctx, "user-1", false); err != nil {
		t.Fatalf("SetSubscribed(false) failed: %v", err)
	}

	got, err = p.Status(ctx, "user-1")
	if err != nil || got != (entity.SubscriptionStatus{Exists: true, Subscribed: false}) {
		t.Fatalf("Status(after cancel) = %+v, %v", got, err)
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()

	p, err := subscription.New(t.Context(), config.Subscription{Provider: "memory"})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	exercise(t, p)
}

// TestRedis requires a running Redis/Valkey server.
// Set REDIS_ADDRESS (e.g., "localhost:6379") to enable it.
func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		t.Skip("Skipping Redis tests: set REDIS_ADDRESS to enable")
	}

	p, err := subscription.New(t.Context(), config.Subscription{
		Provider:       "redis",
		RedisAddr:      addr,
		RedisDB:        15,
		RedisKeyPrefix: "jusdown-test:" + t.Name() + ":",
	})
	if err != nil {
		t.Fatalf("New(redis) failed: %v", err)
	}
	defer p.Close()

	exercise(t, p)
}

// TestPostgres requires a disposable database.
// Set POSTGRES_DSN to enable it.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres tests: set POSTGRES_DSN to enable")
	}

	p, err := subscription.New(t.Context(), config.Subscription{
		Provider:         "postgres",
		PostgresDSN:      dsn,
		PostgresMaxConns: 2,
	})
	if err != nil {
		t.Fatalf("New(postgres) failed: %v", err)
	}
	defer p.Close()

	exercise(t, p)
}
