package cache

import (
	"context"
	"sync"
	"time"

	"github.com/runboardhq/runboard/internal/models"
)

// Cache defines the interface for scalar series caching implementations.
// Get returns fresh data only; GetStale also accepts entries whose TTL has
// lapsed, up to maxAge from the time they were stored.
type Cache interface {
	Get(ctx context.Context, key string) (models.ScalarSeries, bool, error)
	GetStale(ctx context.Context, key string, maxAge time.Duration) (models.ScalarSeries, bool, error)
	Set(ctx context.Context, key string, value models.ScalarSeries, ttl time.Duration) error
}

// InMemoryCache implements Cache using a map guarded by a mutex. Entries are
// retained past their TTL so GetStale can serve them; entries older than the
// retention limit are removed on access.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

// retention bounds how long an expired entry may linger for stale reads.
const retention = 24 * time.Hour

type cacheEntry struct {
	value     models.ScalarSeries
	storedAt  time.Time
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the cached series for the key if present and not expired.
// Returns (data, true, nil) on cache hit, (zero, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.ScalarSeries, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.ScalarSeries{}, false, nil
	}
	now := time.Now()
	if now.After(entry.storedAt.Add(retention)) {
		delete(c.data, key)
		return models.ScalarSeries{}, false, nil
	}
	if now.After(entry.expiresAt) {
		// Expired but retained for GetStale.
		return models.ScalarSeries{}, false, nil
	}
	return entry.value, true, nil
}

// GetStale retrieves the cached series even past its TTL, as long as it was
// stored within maxAge of now.
func (c *InMemoryCache) GetStale(ctx context.Context, key string, maxAge time.Duration) (models.ScalarSeries, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok {
		return models.ScalarSeries{}, false, nil
	}
	if time.Since(entry.storedAt) > maxAge {
		delete(c.data, key)
		return models.ScalarSeries{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores the series with the specified TTL duration.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.ScalarSeries, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.data[key] = cacheEntry{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}
	return nil
}
