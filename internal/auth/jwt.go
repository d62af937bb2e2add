package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Header constants for bearer extraction.
const (
	headerAuthorization = "Authorization"
	bearerPrefix        = "Bearer "
)

// JWTConfig holds configuration for the JWT strategy.
type JWTConfig struct {
	// Secret is the HMAC signing secret. Mutually exclusive with JWKSURL.
	Secret string

	// JWKSURL is the remote key set endpoint for asymmetric verification.
	JWKSURL string

	// Issuer, when set, must match the token's iss claim.
	Issuer string

	// Audience, when set, must be present in the token's aud claim.
	Audience string

	// ClockSkew is the allowed clock skew during validation.
	ClockSkew time.Duration

	// RolesClaim is the claim carrying role values. Defaults to "roles".
	RolesClaim string
}

// JWTStrategy authenticates bearer tokens in compact JWS form.
type JWTStrategy struct {
	cfg   JWTConfig
	key   jwk.Key
	cache *jwk.Cache
}

// NewJWTStrategy creates the JWT strategy. When a JWKS URL is configured,
// keys are fetched and cached in the background.
func NewJWTStrategy(ctx context.Context, cfg JWTConfig) (*JWTStrategy, error) {
	if cfg.RolesClaim == "" {
		cfg.RolesClaim = "roles"
	}

	s := &JWTStrategy{cfg: cfg}

	switch {
	case cfg.JWKSURL != "":
		cache := jwk.NewCache(ctx)
		if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
			return nil, fmt.Errorf("failed to register JWKS endpoint: %w", err)
		}
		s.cache = cache
	case cfg.Secret != "":
		key, err := jwk.FromRaw([]byte(cfg.Secret))
		if err != nil {
			return nil, fmt.Errorf("failed to build HMAC key: %w", err)
		}
		s.key = key
	default:
		return nil, fmt.Errorf("jwt strategy requires a secret or a JWKS URL")
	}

	return s, nil
}

// Name implements Strategy.
func (s *JWTStrategy) Name() string {
	return "jwt-bearer"
}

// CanHandle implements Strategy. The strategy claims requests whose bearer
// token looks like a compact JWS (two dots).
func (s *JWTStrategy) CanHandle(r *http.Request) bool {
	token := bearerToken(r)
	return token != "" && strings.Count(token, ".") == 2
}

// Authenticate implements Strategy.
func (s *JWTStrategy) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	raw := bearerToken(r)
	if raw == "" {
		return nil, ErrNoCredentials
	}

	opts := []jwt.ParseOption{
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(s.cfg.ClockSkew),
	}

	if s.cache != nil {
		set, err := s.cache.Get(ctx, s.cfg.JWKSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
		}
		opts = append(opts, jwt.WithKeySet(set))
	} else {
		opts = append(opts, jwt.WithKey(jwa.HS256, s.key))
	}

	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience))
	}

	token, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return s.principalFromToken(token), nil
}

// Challenge implements Strategy.
func (s *JWTStrategy) Challenge(w http.ResponseWriter) {
	Challenge(w)
}

// principalFromToken maps validated claims onto a Principal.
func (s *JWTStrategy) principalFromToken(token jwt.Token) *Principal {
	claims := token.PrivateClaims()

	p := &Principal{
		Subject: token.Subject(),
		Claims:  claims,
	}

	if name, ok := claims["name"].(string); ok {
		p.Name = name
	}

	p.Roles = rolesFromClaim(claims[s.cfg.RolesClaim])

	return p
}

// rolesFromClaim extracts role strings from a roles claim, which may be a
// single string or a list.
func rolesFromClaim(value interface{}) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
		return roles
	default:
		return nil
	}
}

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	value := r.Header.Get(headerAuthorization)
	if len(value) <= len(bearerPrefix) || !strings.EqualFold(value[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(value[len(bearerPrefix):])
}
