package auth

import (
	"context"
	"net/http"
)

// AnonymousStrategy claims every request and yields no principal. It is
// registered last so that credentialed requests are claimed by a token
// strategy first.
type AnonymousStrategy struct{}

// NewAnonymousStrategy creates the anonymous strategy.
func NewAnonymousStrategy() *AnonymousStrategy {
	return &AnonymousStrategy{}
}

// Name implements Strategy.
func (s *AnonymousStrategy) Name() string {
	return "anonymous"
}

// CanHandle implements Strategy. Anonymous handles everything.
func (s *AnonymousStrategy) CanHandle(*http.Request) bool {
	return true
}

// Authenticate implements Strategy. The request stays anonymous.
func (s *AnonymousStrategy) Authenticate(context.Context, *http.Request) (*Principal, error) {
	return nil, nil
}

// Challenge implements Strategy.
func (s *AnonymousStrategy) Challenge(w http.ResponseWriter) {
	Challenge(w)
}
