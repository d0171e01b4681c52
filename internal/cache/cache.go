package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tgordeev/weather-balance-service/internal/models"
)

// Cache stores temperature readings per normalized city key.
// Get returns the reading only while it is fresh; Set overwrites the entry
// for the key with a new TTL window.
type Cache interface {
	Get(ctx context.Context, key string) (models.TemperatureReading, bool, error)
	Set(ctx context.Context, key string, value models.TemperatureReading, ttl time.Duration) error
}

// InMemoryCache implements Cache with a mutex-guarded map. Entries are never
// deleted: a stale entry stays in the map until the next successful refresh
// overwrites it, so memory use is bounded by the set of distinct cities
// queried over the process lifetime. Safe for concurrent use.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]entry
}

type entry struct {
	value     models.TemperatureReading
	expiresAt time.Time
}

// NewInMemoryCache creates an empty in-memory cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]entry),
	}
}

// Get returns the cached reading for key if present and still fresh.
// Returns (zero, false, nil) on miss or when the entry has gone stale;
// the stale entry is left in place for the next Set to overwrite.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.TemperatureReading, bool, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return models.TemperatureReading{}, false, nil
	}
	if time.Now().After(e.expiresAt) {
		return models.TemperatureReading{}, false, nil
	}
	return e.value, true, nil
}

// Set stores a reading for key, overwriting any prior entry. The entry is
// fresh for ttl from now.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.TemperatureReading, ttl time.Duration) error {
	c.mu.Lock()
	c.data[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries currently held, fresh or stale.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
