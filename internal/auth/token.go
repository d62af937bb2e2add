package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// headerAPIKey is the alternate carrier for opaque service tokens.
const headerAPIKey = "X-API-Key"

// Hash algorithms supported for stored token digests.
const (
	HashAlgSHA256 = "sha256"
	HashAlgBcrypt = "bcrypt"
)

// TokenEntry is one provisioned opaque token. Only a digest of the token
// is stored.
type TokenEntry struct {
	// Subject is the identity the token authenticates as.
	Subject string `yaml:"subject"`

	// Name is a human-readable label.
	Name string `yaml:"name"`

	// Roles are granted to the authenticated principal.
	Roles []string `yaml:"roles"`

	// Hash is the hex SHA-256 digest or bcrypt hash of the token value.
	Hash string `yaml:"hash"`

	// HashAlg selects the digest scheme; defaults to sha256.
	HashAlg string `yaml:"hashAlg"`
}

// APITokenStrategy authenticates opaque service tokens presented either as
// a bearer token or in the X-API-Key header.
type APITokenStrategy struct {
	// keyed by hex SHA-256 digest for constant-time lookup
	bySHA256 map[string]*TokenEntry
	bcrypt   []*TokenEntry
}

// NewAPITokenStrategy creates the strategy from the provisioned entries.
func NewAPITokenStrategy(entries []TokenEntry) *APITokenStrategy {
	s := &APITokenStrategy{
		bySHA256: make(map[string]*TokenEntry),
	}

	for i := range entries {
		entry := &entries[i]
		switch entry.HashAlg {
		case HashAlgBcrypt:
			s.bcrypt = append(s.bcrypt, entry)
		default:
			s.bySHA256[entry.Hash] = entry
		}
	}

	return s
}

// Name implements Strategy.
func (s *APITokenStrategy) Name() string {
	return "api-token"
}

// CanHandle implements Strategy. The strategy claims requests carrying an
// X-API-Key header or a bearer token that is not a compact JWS.
func (s *APITokenStrategy) CanHandle(r *http.Request) bool {
	if r.Header.Get(headerAPIKey) != "" {
		return true
	}
	token := bearerToken(r)
	return token != "" && !looksLikeJWS(token)
}

// Authenticate implements Strategy.
func (s *APITokenStrategy) Authenticate(_ context.Context, r *http.Request) (*Principal, error) {
	token := r.Header.Get(headerAPIKey)
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		return nil, ErrNoCredentials
	}

	entry := s.lookup(token)
	if entry == nil {
		return nil, ErrUnknownToken
	}

	return &Principal{
		Subject: entry.Subject,
		Name:    entry.Name,
		Roles:   entry.Roles,
	}, nil
}

// Challenge implements Strategy.
func (s *APITokenStrategy) Challenge(w http.ResponseWriter) {
	Challenge(w)
}

// lookup resolves a raw token to its entry, or nil.
func (s *APITokenStrategy) lookup(token string) *TokenEntry {
	digest := sha256.Sum256([]byte(token))
	hexDigest := hex.EncodeToString(digest[:])

	if entry, ok := s.bySHA256[hexDigest]; ok {
		// The map key already matched, but compare again in constant
		// time to keep the lookup timing-independent of the table.
		if subtle.ConstantTimeCompare([]byte(hexDigest), []byte(entry.Hash)) == 1 {
			return entry
		}
	}

	for _, entry := range s.bcrypt {
		if bcrypt.CompareHashAndPassword([]byte(entry.Hash), []byte(token)) == nil {
			return entry
		}
	}

	return nil
}

// looksLikeJWS reports whether a token is in compact JWS form.
func looksLikeJWS(token string) bool {
	dots := 0
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			dots++
		}
	}
	return dots == 2
}

// HashToken returns the hex SHA-256 digest of a token value. Used when
// provisioning entries.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
