package cache

import (
	"context"
	"encoding/json"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/runboardhq/runboard/internal/models"
)

// RedisCache implements Cache using Redis. Entries carry the envelope so
// freshness and stale age are computable; physical expiry is TTL plus the
// stale window.
type RedisCache struct {
	client      *backend.Client
	staleWindow time.Duration
}

// NewRedisCache creates a RedisCache connected to addr.
func NewRedisCache(addr, password string, db int, staleWindow time.Duration) *RedisCache {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: client, staleWindow: staleWindow}
}

// NewRedisCacheFromClient wraps an existing client. Used by tests with miniredis.
func NewRedisCacheFromClient(client *backend.Client, staleWindow time.Duration) *RedisCache {
	return &RedisCache{client: client, staleWindow: staleWindow}
}

func (c *RedisCache) key(k string) string {
	return keyPrefix + k
}

// Get implements Cache.Get.
func (c *RedisCache) Get(ctx context.Context, key string) (models.ScalarSeries, bool, error) {
	env, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		return models.ScalarSeries{}, false, err
	}
	if !env.fresh(time.Now()) {
		return models.ScalarSeries{}, false, nil
	}
	return env.Series, true, nil
}

// GetStale implements Cache.GetStale.
func (c *RedisCache) GetStale(ctx context.Context, key string, maxAge time.Duration) (models.ScalarSeries, bool, error) {
	env, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		return models.ScalarSeries{}, false, err
	}
	if !env.withinAge(time.Now(), maxAge) {
		return models.ScalarSeries{}, false, nil
	}
	return env.Series, true, nil
}

func (c *RedisCache) fetch(ctx context.Context, key string) (envelope, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err == backend.Nil {
			return envelope{}, false, nil
		}
		return envelope{}, false, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, false, err
	}
	return env, true, nil
}

// Set implements Cache.Set.
func (c *RedisCache) Set(ctx context.Context, key string, value models.ScalarSeries, ttl time.Duration) error {
	raw, err := json.Marshal(envelope{
		Series:   value,
		StoredAt: time.Now(),
		TTLSec:   int64(ttl.Seconds()),
	})
	if err != nil {
		return err
	}
	expiry := ttl + c.staleWindow
	if expiry <= 0 {
		expiry = time.Hour
	}
	return c.client.Set(ctx, c.key(key), raw, expiry).Err()
}

// Ping checks if redis is reachable. Used for health checks.
func (c *RedisCache) Ping() error {
	return c.client.Ping(context.Background()).Err()
}

// Close closes the redis client. Call during shutdown.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
