package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jusdown/internal/config"
	"jusdown/internal/entity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresConnectTimeout = 10 * time.Second

const createTable = `
CREATE TABLE IF NOT EXISTS subscriptions (
    user_id    TEXT PRIMARY KEY,
    subscribed BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

func init() {
	Register("postgres", newPostgres)
}

type postgresStore struct {
	pool *pgxpool.Pool
}

func newPostgres(ctx context.Context, cfg config.Subscription) (Provider, error) {
	if cfg.PostgresDSN == "" {
		return nil, errors.New("postgres dsn is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolCfg.MaxConns = max(cfg.PostgresMaxConns, 1)
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, postgresConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if _, err := pool.Exec(ctx, createTable); err != nil {
		pool.Close()

		return nil, fmt.Errorf("create subscriptions table: %w", err)
	}

	return &postgresStore{pool: pool}, nil
}

func (p *postgresStore) Status(ctx context.Context, userID string) (entity.SubscriptionStatus, error) {
	var subscribed bool

	err := p.pool.QueryRow(ctx, `SELECT subscribed FROM subscriptions WHERE user_id = $1`, userID).Scan(&subscribed)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.SubscriptionStatus{}, nil
	}

	if err != nil {
		return entity.SubscriptionStatus{}, fmt.Errorf("select subscription: %w", err)
	}

	return entity.SubscriptionStatus{Exists: true, Subscribed: subscribed}, nil
}

func (p *postgresStore) SetSubscribed(ctx context.Context, userID string, subscribed bool) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO subscriptions (user_id, subscribed, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE
SET subscribed = EXCLUDED.subscribed,
    updated_at = NOW();`, userID, subscribed)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	return nil
}

func (p *postgresStore) Close() error {
	p.pool.Close()

	return nil
}
