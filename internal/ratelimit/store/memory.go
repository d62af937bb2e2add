package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// maxCASRetries bounds CAS retry attempts to prevent infinite spinning
// under pathological contention.
const maxCASRetries = 100

// entry represents a stored counter with its window deadline.
type entry struct {
	value      int64
	expiration time.Time
}

// MemoryStore implements Store using in-process storage. Increments are
// lock-free compare-and-swap loops over a sync.Map so that concurrent
// callers on distinct keys never contend on a global lock.
type MemoryStore struct {
	data    sync.Map
	cleanup *time.Ticker
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewMemoryStore creates a new in-memory store with a one-minute
// background sweep of expired entries.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCleanupInterval(time.Minute)
}

// NewMemoryStoreWithCleanupInterval creates a new in-memory store with a
// custom sweep interval.
func NewMemoryStoreWithCleanupInterval(interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		cleanup: time.NewTicker(interval),
		done:    make(chan struct{}),
	}

	go s.startCleanup()

	return s
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	value, ok := s.data.Load(key)
	if !ok {
		return 0, &ErrKeyNotFound{Key: key}
	}

	e := value.(*entry)

	// Lazy eviction: a read after the window elapsed removes the entry.
	// CompareAndDelete only evicts the observed entry, so a concurrent
	// window-reset Increment never loses its fresh counter.
	if !e.expiration.IsZero() && time.Now().After(e.expiration) {
		s.data.CompareAndDelete(key, e)
		return 0, &ErrKeyNotFound{Key: key}
	}

	return e.value, nil
}

// Increment implements Store.
func (s *MemoryStore) Increment(
	ctx context.Context,
	key string,
	delta int64,
	window time.Duration,
) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	for retries := 0; retries < maxCASRetries; retries++ {
		value, ok := s.data.Load(key)
		if !ok {
			// First touch: count=delta, window starts now.
			newEntry := &entry{
				value:      delta,
				expiration: time.Now().Add(window),
			}
			if actual, loaded := s.data.LoadOrStore(key, newEntry); loaded {
				value = actual
			} else {
				return delta, nil
			}
		}

		e := value.(*entry)

		// Window elapsed: reset to delta with a fresh window via CAS so
		// that exactly one concurrent caller wins the reset.
		if !e.expiration.IsZero() && time.Now().After(e.expiration) {
			newEntry := &entry{
				value:      delta,
				expiration: time.Now().Add(window),
			}
			if s.data.CompareAndSwap(key, e, newEntry) {
				return delta, nil
			}
			continue
		}

		// In-window increment keeps the original window deadline.
		newEntry := &entry{
			value:      e.value + delta,
			expiration: e.expiration,
		}

		if s.data.CompareAndSwap(key, e, newEntry) {
			return newEntry.value, nil
		}
	}

	return 0, fmt.Errorf("increment failed: max retries (%d) exceeded", maxCASRetries)
}

// TTL implements Store.
func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	value, ok := s.data.Load(key)
	if !ok {
		return 0, &ErrKeyNotFound{Key: key}
	}

	e := value.(*entry)
	if e.expiration.IsZero() {
		return 0, nil
	}

	remaining := time.Until(e.expiration)
	if remaining <= 0 {
		s.data.CompareAndDelete(key, e)
		return 0, &ErrKeyNotFound{Key: key}
	}

	return remaining, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.data.Delete(key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.cleanup.Stop()
	close(s.done)

	return nil
}

// startCleanup periodically removes expired entries.
func (s *MemoryStore) startCleanup() {
	for {
		select {
		case <-s.cleanup.C:
			s.cleanupExpired()
		case <-s.done:
			return
		}
	}
}

// cleanupExpired removes all expired entries.
func (s *MemoryStore) cleanupExpired() {
	now := time.Now()

	s.data.Range(func(key, value interface{}) bool {
		e := value.(*entry)
		if !e.expiration.IsZero() && now.After(e.expiration) {
			s.data.CompareAndDelete(key, e)
		}
		return true
	})
}

// Size returns the number of entries in the store.
func (s *MemoryStore) Size() int {
	count := 0
	s.data.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}
