package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("value"), time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_ExpiredEntryIsMiss(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("value"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("value"), 0))
	time.Sleep(5 * time.Millisecond)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("value"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_BackgroundSweep(t *testing.T) {
	c := NewMemoryCacheWithCleanupInterval(10 * time.Millisecond)
	defer c.Close()

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("value"), time.Millisecond))

	assert.Eventually(t, func() bool {
		_, ok := c.data.Load("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCache_CloseIdempotent(t *testing.T) {
	c := NewMemoryCache()

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestMemoryCache_ContextCancelled(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), context.Canceled)
}
