package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiom-software-co/international-center-gateway/internal/ratelimit/store"
)

func newMemoryLimiter(t *testing.T, dimension string, cfg Config, opts ...LimiterOption) *DimensionLimiter {
	t.Helper()

	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	return NewDimensionLimiter(dimension, s, cfg, opts...)
}

func TestDimensionLimiter_AllowsUpToLimit(t *testing.T) {
	cfg := Config{Enabled: true, Limit: 3, ElevatedLimit: 10, Window: time.Minute}
	l := newMemoryLimiter(t, DimensionUser, cfg)

	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, err := l.Check(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d within limit must be allowed", i)
		assert.Equal(t, int64(i), d.Count)
		assert.Equal(t, 3-i, d.Remaining)
	}
}

func TestDimensionLimiter_DeniesBeyondLimit_CounterNotCapped(t *testing.T) {
	cfg := Config{Enabled: true, Limit: 3, ElevatedLimit: 10, Window: time.Minute}
	l := newMemoryLimiter(t, DimensionUser, cfg)

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.Check(ctx, "alice")
		require.NoError(t, err)
	}

	d, err := l.Check(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, d.Allowed, "request limit+1 must be denied")
	assert.Equal(t, int64(4), d.Count, "denied attempt is still counted")
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 3, d.Limit)
}

func TestDimensionLimiter_WindowReset(t *testing.T) {
	cfg := Config{Enabled: true, Limit: 1, Window: 20 * time.Millisecond}
	l := newMemoryLimiter(t, DimensionUser, cfg)

	ctx := context.Background()

	d, err := l.Check(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Check(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	time.Sleep(30 * time.Millisecond)

	d, err = l.Check(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "fresh window re-admits the caller")
	assert.Equal(t, int64(1), d.Count)
}

func TestDimensionLimiter_AdminIdentifierElevatedTier(t *testing.T) {
	cfg := Config{Enabled: true, Limit: 2, ElevatedLimit: 5, Window: time.Minute}
	l := newMemoryLimiter(t, DimensionUser, cfg)

	ctx := context.Background()

	tests := []struct {
		id   string
		want int
	}{
		{"alice", 2},
		{"admin", 5},
		{"site-ADMIN-7", 5},
		{"Administrator", 5},
		{"badminton", 5}, // substring match is intentional
	}

	for _, tt := range tests {
		d, err := l.Check(ctx, tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, d.Limit, "identifier %q", tt.id)
	}
}

func TestDimensionLimiter_BypassSkipsCounter(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	cfg := Config{Enabled: true, Limit: 1, Window: time.Minute}
	l := NewDimensionLimiter(DimensionIP, s, cfg, WithBypass(NewBypass(nil)))

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Check(ctx, "127.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.True(t, d.Bypassed)
	}

	// Bypassed requests never touch the store.
	_, err := s.Get(ctx, "ip:127.0.0.1")
	assert.True(t, store.IsKeyNotFound(err))
}

func TestDimensionLimiter_ResetAfterWithinWindow(t *testing.T) {
	cfg := Config{Enabled: true, Limit: 10, Window: time.Minute}
	l := newMemoryLimiter(t, DimensionIP, cfg)

	d, err := l.Check(context.Background(), "203.0.113.9")
	require.NoError(t, err)
	assert.Greater(t, d.ResetAfter, time.Duration(0))
	assert.LessOrEqual(t, d.ResetAfter, time.Minute)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 1000, cfg.Limit)
	assert.Equal(t, 5000, cfg.ElevatedLimit)
	assert.Equal(t, time.Minute, cfg.Window)
}
