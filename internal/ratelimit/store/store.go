// Package store provides counter storage backends for rate limiting.
package store

import (
	"context"
	"time"
)

// Store is an atomic windowed counter keyed by string. The window opens on
// the first increment of a key and the counter lazily resets once the window
// has elapsed; stale entries are evicted on next access, not proactively
// swept between accesses.
type Store interface {
	// Get retrieves the current count for the given key. Returns
	// ErrKeyNotFound when the key is absent or its window has elapsed.
	Get(ctx context.Context, key string) (int64, error)

	// Increment atomically adds delta to the counter for key. The first
	// increment of a key starts a window of the given size; an increment
	// after the window has elapsed resets the counter to delta and starts
	// a fresh window. Returns the count after the increment.
	Increment(ctx context.Context, key string, delta int64, window time.Duration) (int64, error)

	// TTL returns the remaining time until the key's window elapses.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Delete removes the key from the store.
	Delete(ctx context.Context, key string) error

	// Close closes the store and releases resources.
	Close() error
}

// ErrKeyNotFound is returned when a key is not found in the store.
type ErrKeyNotFound struct {
	Key string
}

func (e *ErrKeyNotFound) Error() string {
	return "key not found: " + e.Key
}

// IsKeyNotFound returns true if the error is a key not found error.
func IsKeyNotFound(err error) bool {
	_, ok := err.(*ErrKeyNotFound)
	return ok
}
