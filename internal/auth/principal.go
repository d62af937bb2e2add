// Package auth provides pluggable authentication strategies and the
// dispatcher that selects among them for the gateway pipeline.
package auth

import (
	"context"
	"errors"
)

// Sentinel errors for authentication operations.
var (
	// ErrNoCredentials indicates that no credentials were provided.
	ErrNoCredentials = errors.New("no credentials provided")

	// ErrInvalidToken indicates that the presented token is invalid.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates that the token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrUnknownToken indicates an opaque token with no matching entry.
	ErrUnknownToken = errors.New("unknown token")
)

// Well-known role claim values accepted by the admin authorization strategy.
const (
	RoleAdmin         = "Admin"
	RoleAdministrator = "Administrator"
)

// Principal is the authenticated identity attached to a request context.
type Principal struct {
	// Subject is the unique identifier for the identity.
	Subject string `json:"sub"`

	// Name is the display name, when known.
	Name string `json:"name,omitempty"`

	// Roles contains the role claims carried by the identity.
	Roles []string `json:"roles,omitempty"`

	// Claims contains additional claims from the credential.
	Claims map[string]interface{} `json:"claims,omitempty"`

	// Strategy is the name of the strategy that authenticated the identity.
	Strategy string `json:"strategy,omitempty"`
}

// HasRole reports whether the principal carries the given role claim.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Identifier returns the value used for user-dimension rate limiting:
// the display name when present, else the subject.
func (p *Principal) Identifier() string {
	if p == nil {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Subject
}

type ctxKey struct{}

// ContextWithPrincipal attaches a principal to the context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFromContext extracts the principal from the context. Returns nil
// for anonymous requests.
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(ctxKey{}).(*Principal); ok {
		return p
	}
	return nil
}
