package auth

import (
	"context"
	"net/http"

	"github.com/axiom-software-co/international-center-gateway/internal/observability"
)

// Strategy is one interchangeable authentication mechanism. Strategies are
// probed in registration order; the first whose CanHandle returns true
// authenticates the request.
type Strategy interface {
	// Name returns the strategy name for logging and the principal record.
	Name() string

	// CanHandle reports whether this strategy claims the request.
	CanHandle(r *http.Request) bool

	// Authenticate verifies the request's credentials. A nil principal
	// with a nil error means the strategy deliberately yields no identity.
	Authenticate(ctx context.Context, r *http.Request) (*Principal, error)

	// Challenge writes the strategy's re-authentication challenge.
	Challenge(w http.ResponseWriter)
}

// Dispatcher selects the first registered strategy that claims a request
// and runs its authentication. Authentication never rejects a request:
// when no strategy claims it, or the claiming strategy fails, the request
// simply stays anonymous and rejection is left to authorization.
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

// Authenticate runs strategy selection and returns the principal, or nil
// when the request remains anonymous. The selected strategy's name is
// returned even when authentication fails, for observability.
func (d *Dispatcher) Authenticate(ctx context.Context, r *http.Request) (*Principal, string) {
	for _, s := range d.strategies {
		if !s.CanHandle(r) {
			continue
		}

		principal, err := s.Authenticate(ctx, r)
		if err != nil {
			d.logger.WithContext(ctx).Debug("authentication failed",
				observability.String("strategy", s.Name()),
				observability.Error(err),
			)
			return nil, s.Name()
		}

		if principal != nil {
			principal.Strategy = s.Name()
		}
		return principal, s.Name()
	}

	return nil, ""
}

// Challenge writes a bearer re-authentication challenge: status 401 and a
// WWW-Authenticate header. Invoked only when a downstream stage explicitly
// requests re-authentication.
func Challenge(w http.ResponseWriter) {
	ChallengeHeader(w)
	w.WriteHeader(http.StatusUnauthorized)
}

// ChallengeHeader sets the bearer challenge header without committing a
// status, for callers that write their own 401 body.
func ChallengeHeader(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
}
