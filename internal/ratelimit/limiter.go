// Package ratelimit provides the composite rate-limit decision for the
// gateway pipeline. Two independent dimensions (network origin and caller
// identity) are counted in fixed windows backed by a pluggable counter store.
package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/axiom-software-co/international-center-gateway/internal/observability"
	"github.com/axiom-software-co/international-center-gateway/internal/ratelimit/store"
)

// Dimension names used as counter key prefixes.
const (
	DimensionIP   = "ip"
	DimensionUser = "user"
)

// Decision is the outcome of a single dimension check.
type Decision struct {
	// Allowed indicates whether the request is allowed by this dimension.
	Allowed bool

	// Count is the window's counter value after this request was recorded.
	// Denied requests are still counted, so Count may exceed Limit.
	Count int64

	// Limit is the effective limit for the checked identifier.
	Limit int

	// Remaining is max(0, Limit-Count).
	Remaining int

	// ResetAfter is the duration until the window elapses.
	ResetAfter time.Duration

	// Bypassed indicates the identifier was exempt and no counter was touched.
	Bypassed bool
}

// Config holds configuration for one dimension limiter.
type Config struct {
	// Enabled toggles the dimension.
	Enabled bool

	// Limit is the number of requests allowed per window for ordinary
	// identifiers.
	Limit int

	// ElevatedLimit applies to identifiers containing "admin"
	// (case-insensitive).
	ElevatedLimit int

	// Window is the fixed counting window.
	Window time.Duration
}

// DefaultConfig returns the default per-minute tier.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		Limit:         1000,
		ElevatedLimit: 5000,
		Window:        time.Minute,
	}
}

// DimensionLimiter counts one dimension (IP or user) against the store.
type DimensionLimiter struct {
	dimension string
	store     store.Store
	cfg       Config
	bypass    *Bypass
	logger    observability.Logger
}

// LimiterOption is a functional option for a dimension limiter.
type LimiterOption func(*DimensionLimiter)

// WithBypass sets the bypass list. Bypassed identifiers are allowed
// without touching any counter.
func WithBypass(b *Bypass) LimiterOption {
	return func(l *DimensionLimiter) {
		l.bypass = b
	}
}

// WithLimiterLogger sets the logger.
func WithLimiterLogger(logger observability.Logger) LimiterOption {
	return func(l *DimensionLimiter) {
		l.logger = logger
	}
}

// NewDimensionLimiter creates a limiter for the given dimension.
func NewDimensionLimiter(
	dimension string,
	s store.Store,
	cfg Config,
	opts ...LimiterOption,
) *DimensionLimiter {
	l := &DimensionLimiter{
		dimension: dimension,
		store:     s,
		cfg:       cfg,
		logger:    observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// limitFor returns the effective limit for an identifier. Identifiers
// containing "admin" resolve to the elevated tier.
func (l *DimensionLimiter) limitFor(id string) int {
	if l.cfg.ElevatedLimit > 0 && strings.Contains(strings.ToLower(id), "admin") {
		return l.cfg.ElevatedLimit
	}
	return l.cfg.Limit
}

// Window returns the configured window.
func (l *DimensionLimiter) Window() time.Duration {
	return l.cfg.Window
}

// Limit returns the configured default-tier limit.
func (l *DimensionLimiter) Limit() int {
	return l.cfg.Limit
}

// Check records the request against the identifier's counter and evaluates
// the limit. The counter is always incremented before evaluation: the call
// that pushes the count to limit+1 is itself denied, so exactly limit
// requests per window are allowed and the counter reflects every attempt,
// including denied ones.
func (l *DimensionLimiter) Check(ctx context.Context, id string) (*Decision, error) {
	limit := l.limitFor(id)

	if l.bypass != nil && l.bypass.Contains(id) {
		return &Decision{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			Bypassed:  true,
		}, nil
	}

	key := l.dimension + ":" + id

	count, err := l.store.Increment(ctx, key, 1, l.cfg.Window)
	if err != nil {
		return nil, err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	resetAfter, err := l.store.TTL(ctx, key)
	if err != nil {
		// The entry may already have been evicted; fall back to a full window.
		resetAfter = l.cfg.Window
	}

	return &Decision{
		Allowed:    count <= int64(limit),
		Count:      count,
		Limit:      limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}, nil
}
