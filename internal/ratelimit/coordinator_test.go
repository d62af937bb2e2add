package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axiom-software-co/international-center-gateway/internal/ratelimit/store"
)

func newCoordinatorWithStore(t *testing.T, ipCfg, userCfg Config) (*Coordinator, store.Store) {
	t.Helper()

	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })

	var ip, user *DimensionLimiter
	if ipCfg.Enabled {
		ip = NewDimensionLimiter(DimensionIP, s, ipCfg)
	}
	if userCfg.Enabled {
		user = NewDimensionLimiter(DimensionUser, s, userCfg)
	}

	return NewCoordinator(ip, user), s
}

func TestCoordinator_AllowWhenBothDimensionsAllow(t *testing.T) {
	c, _ := newCoordinatorWithStore(t,
		Config{Enabled: true, Limit: 10, Window: time.Minute},
		Config{Enabled: true, Limit: 5, Window: time.Minute},
	)

	outcome, err := c.Evaluate(context.Background(), "203.0.113.1", "alice")
	require.NoError(t, err)
	assert.True(t, outcome.Allowed)
}

func TestCoordinator_MergedInfoReportsSmallerLimit(t *testing.T) {
	c, _ := newCoordinatorWithStore(t,
		Config{Enabled: true, Limit: 10, Window: time.Minute},
		Config{Enabled: true, Limit: 5, Window: time.Minute},
	)

	outcome, err := c.Evaluate(context.Background(), "203.0.113.1", "alice")
	require.NoError(t, err)

	assert.Equal(t, 5, outcome.Limit, "user limiter is more restrictive")
	assert.Equal(t, 4, outcome.Remaining)
	assert.Equal(t, time.Minute, outcome.Window)
}

func TestCoordinator_DecisionIsLogicalAND(t *testing.T) {
	c, _ := newCoordinatorWithStore(t,
		Config{Enabled: true, Limit: 100, Window: time.Minute},
		Config{Enabled: true, Limit: 1, Window: time.Minute},
	)

	ctx := context.Background()

	outcome, err := c.Evaluate(ctx, "203.0.113.1", "alice")
	require.NoError(t, err)
	assert.True(t, outcome.Allowed)

	outcome, err = c.Evaluate(ctx, "203.0.113.1", "alice")
	require.NoError(t, err)
	assert.False(t, outcome.Allowed, "user dimension denies, so the composite denies")
	assert.True(t, outcome.IP.Allowed, "IP dimension alone would have allowed")
}

func TestCoordinator_BothCountersTouchedOnDeny(t *testing.T) {
	c, s := newCoordinatorWithStore(t,
		Config{Enabled: true, Limit: 1, Window: time.Minute},
		Config{Enabled: true, Limit: 100, Window: time.Minute},
	)

	ctx := context.Background()

	// Second evaluation trips the IP dimension; the user counter must
	// still record the attempt (anti-bypass).
	for i := 0; i < 2; i++ {
		_, err := c.Evaluate(ctx, "203.0.113.1", "alice")
		require.NoError(t, err)
	}

	userCount, err := s.Get(ctx, "user:alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), userCount, "denied request still counted on the other dimension")

	ipCount, err := s.Get(ctx, "ip:203.0.113.1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ipCount)
}

func TestCoordinator_SingleDimension(t *testing.T) {
	c, _ := newCoordinatorWithStore(t,
		Config{Enabled: true, Limit: 7, Window: time.Minute},
		Config{},
	)

	outcome, err := c.Evaluate(context.Background(), "203.0.113.1", "alice")
	require.NoError(t, err)
	assert.True(t, outcome.Allowed)
	assert.Equal(t, 7, outcome.Limit)
	assert.Nil(t, outcome.User)
}

func TestCoordinator_Disabled(t *testing.T) {
	c := NewCoordinator(nil, nil)
	assert.False(t, c.Enabled())

	outcome, err := c.Evaluate(context.Background(), "203.0.113.1", "alice")
	require.NoError(t, err)
	assert.True(t, outcome.Allowed)
	assert.Zero(t, outcome.Limit)
}
