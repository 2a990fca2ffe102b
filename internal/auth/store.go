package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// RedemptionStore remembers token ids that were already used.
type RedemptionStore interface {
	// Redeem marks id as used for ttl. It reports false when id was
	// redeemed before.
	Redeem(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

// MemoryStore is an in-process RedemptionStore.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates a MemoryStore that purges expired ids every minute.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: cache.New(MagicLinkTTL, time.Minute)}
}

// Redeem implements RedemptionStore.
func (s *MemoryStore) Redeem(_ context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.cache.Add(id, struct{}{}, ttl) == nil, nil
}

type setNXer interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// RedisStore is a RedemptionStore shared between server instances.
type RedisStore struct {
	client setNXer
}

const redeemedKeyPrefix = "hatchling:redeemed:"

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// NewRedisStoreFromURL connects using a redis:// URL.
func NewRedisStoreFromURL(ctx context.Context, rawURL string) (*RedisStore, *redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client), client, nil
}

// Redeem implements RedemptionStore.
func (s *RedisStore) Redeem(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	ok, err := s.client.SetNX(ctx, redeemedKeyPrefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redeem token: %w", err)
	}
	return ok, nil
}
