package ratelimit

import (
	"context"
	"time"

	"github.com/axiom-software-co/international-center-gateway/internal/observability"
)

// Outcome is the composite decision across both dimensions. Limit,
// Remaining, and Window report the more restrictive dimension (the one
// with the smaller configured limit) when both are enabled.
type Outcome struct {
	Allowed   bool
	Limit     int
	Remaining int
	Window    time.Duration

	IP   *Decision
	User *Decision
}

// Coordinator composes the IP and user limiters into one allow/deny
// decision. A nil limiter means that dimension is disabled.
type Coordinator struct {
	ip     *DimensionLimiter
	user   *DimensionLimiter
	logger observability.Logger
}

// CoordinatorOption is a functional option for the coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger sets the logger.
func WithCoordinatorLogger(logger observability.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a coordinator over the given dimension limiters.
func NewCoordinator(ip, user *DimensionLimiter, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		ip:     ip,
		user:   user,
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Evaluate checks both enabled dimensions and returns the composite
// decision. Both counters are touched even when the first dimension already
// denied the request; otherwise a caller could inflate one dimension's
// budget by deliberately tripping the other.
func (c *Coordinator) Evaluate(ctx context.Context, clientIP, userID string) (*Outcome, error) {
	outcome := &Outcome{Allowed: true}

	if c.ip != nil {
		decision, err := c.ip.Check(ctx, clientIP)
		if err != nil {
			return nil, err
		}
		outcome.IP = decision
		outcome.Allowed = outcome.Allowed && decision.Allowed
	}

	if c.user != nil {
		decision, err := c.user.Check(ctx, userID)
		if err != nil {
			return nil, err
		}
		outcome.User = decision
		outcome.Allowed = outcome.Allowed && decision.Allowed
	}

	c.mergeInfo(outcome)

	return outcome, nil
}

// mergeInfo fills the outcome's reported limit info from the more
// restrictive of the enabled dimensions.
func (c *Coordinator) mergeInfo(outcome *Outcome) {
	switch {
	case c.ip != nil && c.user != nil:
		if c.user.Limit() < c.ip.Limit() {
			c.fill(outcome, outcome.User, c.user)
		} else {
			c.fill(outcome, outcome.IP, c.ip)
		}
	case c.ip != nil:
		c.fill(outcome, outcome.IP, c.ip)
	case c.user != nil:
		c.fill(outcome, outcome.User, c.user)
	}
}

func (c *Coordinator) fill(outcome *Outcome, d *Decision, l *DimensionLimiter) {
	outcome.Limit = d.Limit
	outcome.Remaining = d.Remaining
	outcome.Window = l.Window()
}

// Enabled reports whether at least one dimension is active.
func (c *Coordinator) Enabled() bool {
	return c.ip != nil || c.user != nil
}
