// Package cache stores encoded query results with a TTL.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/user/sermon-catalog-go/internal/config"
)

// Cache stores opaque encoded values
type Cache interface {
	// Get returns the value for key; false if absent or expired
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	Stats() Stats
	Close() error
}

// Stats holds cache counters
type Stats struct {
	Hits   int64
	Misses int64
	Sets   int64
}

// New builds the cache selected by CACHE_BACKEND
func New(cfg *config.CacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "redis":
		c, err := NewRedisCache(RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis cache: %w", err)
		}
		return c, nil
	case "none":
		return NewNoop(), nil
	default:
		return NewMemoryCache(time.Minute), nil
	}
}

type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiration)
}

// MemoryCache is a process-local Cache with a background sweeper
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   Stats
	stop    chan struct{}
	done    chan struct{}
}

// NewMemoryCache creates a memory cache. A positive sweep interval starts
// a goroutine that drops expired entries until Close.
func NewMemoryCache(sweep time.Duration) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if sweep > 0 {
		go c.sweepLoop(sweep)
	} else {
		close(c.done)
	}
	return c
}

// Get retrieves a value
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || e.expired(time.Now()) {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.value, true
}

// Set stores a value
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{value: value, expiration: time.Now().Add(ttl)}
	c.stats.Sets++
}

// Delete removes values
func (c *MemoryCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}

// Stats returns cache counters
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper
func (c *MemoryCache) Close() error {
	select {
	case <-c.stop:
	default:
		close(c.stop)
	}
	<-c.done
	return nil
}

func (c *MemoryCache) sweepLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	count := 0
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			count++
		}
	}
	return count
}

type noop struct{}

// NewNoop returns a cache that stores nothing
func NewNoop() Cache { return noop{} }

func (noop) Get(context.Context, string) ([]byte, bool) { return nil, false }
func (noop) Set(context.Context, string, []byte, time.Duration) {}
func (noop) Delete(context.Context, ...string) {}
func (noop) Stats() Stats { return Stats{} }
func (noop) Close() error { return nil }
