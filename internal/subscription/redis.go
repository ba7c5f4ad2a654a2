package subscription

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"jusdown/internal/config"
	"jusdown/internal/entity"

	"github.com/redis/go-redis/v9"
)

const (
	fieldSubscribed  = "subscribed"
	fieldUpdatedAt   = "updated_at"
	redisPingTimeout = 5 * time.Second
)

func init() {
	Register("redis", newRedis)
}

// redisStore keeps one hash per user at {prefix}{user id}.
type redisStore struct {
	client *redis.Client
	prefix string
}

func newRedis(ctx context.Context, cfg config.Subscription) (Provider, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisStore{client: client, prefix: cfg.RedisKeyPrefix}, nil
}

func (r *redisStore) Status(ctx context.Context, userID string) (entity.SubscriptionStatus, error) {
	fields, err := r.client.HGetAll(ctx, r.prefix+userID).Result()
	if err != nil {
		return entity.SubscriptionStatus{}, fmt.Errorf("redis hgetall: %w", err)
	}

	raw, ok := fields[fieldSubscribed]
	if !ok {
		return entity.SubscriptionStatus{}, nil
	}

	subscribed, err := strconv.ParseBool(raw)
	if err != nil {
		return entity.SubscriptionStatus{}, fmt.Errorf("parse %s=%q: %w", fieldSubscribed, raw, err)
	}

	return entity.SubscriptionStatus{Exists: true, Subscribed: subscribed}, nil
}

func (r *redisStore) SetSubscribed(ctx context.Context, userID string, subscribed bool) error {
	err := r.client.HSet(ctx, r.prefix+userID,
		fieldSubscribed, strconv.FormatBool(subscribed),
		fieldUpdatedAt, time.Now().UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}

	return nil
}

func (r *redisStore) Close() error {
	return r.client.Close()
}
