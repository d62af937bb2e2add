// Package authz provides policy-based authorization strategies and the
// dispatcher that selects among them for the gateway pipeline.
package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/axiom-software-co/international-center-gateway/internal/auth"
	"github.com/axiom-software-co/international-center-gateway/internal/observability"
)

// HeaderPolicy is the request header carrying the authorization policy name.
const HeaderPolicy = "X-Authorization-Policy"

// Well-known policy names.
const (
	PolicyPublic = "Public"
	PolicyAdmin  = "Admin"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Policy is the policy name that was evaluated.
	Policy string

	// Strategy is the strategy that made the decision.
	Strategy string

	// Reason explains a denial, for logging only.
	Reason string
}

// Strategy is one interchangeable authorization mechanism. Strategies are
// probed in registration order; the first whose CanHandle returns true for
// the requested policy name decides.
type Strategy interface {
	// Name returns the strategy name.
	Name() string

	// CanHandle reports whether this strategy evaluates the given policy.
	CanHandle(policyName string) bool

	// Authorize evaluates the request against the policy.
	Authorize(ctx context.Context, principal *auth.Principal, r *http.Request) Decision
}

// PublicStrategy allows every request.
type PublicStrategy struct{}

// NewPublicStrategy creates the public strategy.
func NewPublicStrategy() *PublicStrategy {
	return &PublicStrategy{}
}

// Name implements Strategy.
func (s *PublicStrategy) Name() string {
	return "public"
}

// CanHandle implements Strategy.
func (s *PublicStrategy) CanHandle(policyName string) bool {
	return strings.EqualFold(policyName, PolicyPublic)
}

// Authorize implements Strategy. Public always succeeds.
func (s *PublicStrategy) Authorize(context.Context, *auth.Principal, *http.Request) Decision {
	return Decision{Allowed: true, Policy: PolicyPublic, Strategy: s.Name()}
}

// AdminStrategy allows only authenticated principals carrying an Admin or
// Administrator role claim.
type AdminStrategy struct{}

// NewAdminStrategy creates the admin strategy.
func NewAdminStrategy() *AdminStrategy {
	return &AdminStrategy{}
}

// Name implements Strategy.
func (s *AdminStrategy) Name() string {
	return "role-admin"
}

// CanHandle implements Strategy.
func (s *AdminStrategy) CanHandle(policyName string) bool {
	return strings.EqualFold(policyName, PolicyAdmin)
}

// Authorize implements Strategy.
func (s *AdminStrategy) Authorize(_ context.Context, principal *auth.Principal, _ *http.Request) Decision {
	d := Decision{Policy: PolicyAdmin, Strategy: s.Name()}

	if principal == nil {
		d.Reason = "anonymous request"
		return d
	}

	if !principal.HasRole(auth.RoleAdmin) && !principal.HasRole(auth.RoleAdministrator) {
		d.Reason = "missing admin role claim"
		return d
	}

	d.Allowed = true
	return d
}

// Dispatcher resolves the policy name from the request and runs the first
// strategy that claims it.
type Dispatcher struct {
	strategies []Strategy
	logger     observability.Logger
}

// DispatcherOption is a functional option for the dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger observability.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a dispatcher over the given strategies. Order is
// significant: first match wins.
func NewDispatcher(strategies []Strategy, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		strategies: strategies,
		logger:     observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// DefaultDispatcher returns a dispatcher with the public and admin
// strategies in their standard order.
func DefaultDispatcher(opts ...DispatcherOption) *Dispatcher {
	return NewDispatcher([]Strategy{
		NewPublicStrategy(),
		NewAdminStrategy(),
	}, opts...)
}

// PolicyName extracts the requested policy from the request header,
// defaulting to Public when absent.
func PolicyName(r *http.Request) string {
	if name := r.Header.Get(HeaderPolicy); name != "" {
		return name
	}
	return PolicyPublic
}

// Authorize evaluates the request's policy. A policy name no strategy
// claims is denied: an unknown policy must never widen access.
func (d *Dispatcher) Authorize(ctx context.Context, principal *auth.Principal, r *http.Request) Decision {
	policy := PolicyName(r)

	for _, s := range d.strategies {
		if !s.CanHandle(policy) {
			continue
		}

		decision := s.Authorize(ctx, principal, r)
		if !decision.Allowed {
			d.logger.WithContext(ctx).Debug("authorization denied",
				observability.String("policy", decision.Policy),
				observability.String("strategy", decision.Strategy),
				observability.String("reason", decision.Reason),
			)
		}
		return decision
	}

	return Decision{
		Policy: policy,
		Reason: "no strategy for policy",
	}
}
