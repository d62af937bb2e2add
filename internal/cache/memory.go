package cache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry holds a cached value with its expiry deadline.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache implements Cache using in-process storage. Expired entries
// are evicted lazily on read and by a background sweep.
type MemoryCache struct {
	data    sync.Map
	cleanup *time.Ticker
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewMemoryCache creates an in-memory cache with a one-minute background
// sweep of expired entries.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithCleanupInterval(time.Minute)
}

// NewMemoryCacheWithCleanupInterval creates an in-memory cache with a
// custom sweep interval.
func NewMemoryCacheWithCleanupInterval(interval time.Duration) *MemoryCache {
	c := &MemoryCache{
		cleanup: time.NewTicker(interval),
		done:    make(chan struct{}),
	}

	go c.startCleanup()

	return c
}

// Get implements Cache.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	value, ok := c.data.Load(key)
	if !ok {
		return nil, ErrCacheMiss
	}

	e := value.(*memoryEntry)
	if e.expired(time.Now()) {
		c.data.CompareAndDelete(key, e)
		return nil, ErrCacheMiss
	}

	return e.value, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	e := &memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	c.data.Store(key, e)
	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	c.data.Delete(key)
	return nil
}

// Close implements Cache.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.cleanup.Stop()
	close(c.done)

	return nil
}

func (c *MemoryCache) startCleanup() {
	for {
		select {
		case <-c.cleanup.C:
			c.cleanupExpired()
		case <-c.done:
			return
		}
	}
}

func (c *MemoryCache) cleanupExpired() {
	now := time.Now()

	c.data.Range(func(key, value interface{}) bool {
		e := value.(*memoryEntry)
		if e.expired(now) {
			c.data.CompareAndDelete(key, e)
		}
		return true
	})
}
