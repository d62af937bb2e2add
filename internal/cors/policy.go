// Package cors provides path-based CORS policy selection and header
// emission for the gateway pipeline.
package cors

import (
	"net/http"
	"strconv"
	"strings"
)

// Well-known policy names.
const (
	PolicyPublic = "Public"
	PolicyAdmin  = "Admin"
)

// PolicyConfig is the static configuration a Policy is built from.
type PolicyConfig struct {
	Name             string   `yaml:"name"`
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowedMethods   []string `yaml:"allowedMethods"`
	AllowedHeaders   []string `yaml:"allowedHeaders"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAgeSeconds    int      `yaml:"maxAgeSeconds"`
}

// Policy is an immutable CORS policy with precomputed header values.
type Policy struct {
	name             string
	allowedOrigins   map[string]struct{}
	allowMethods     string
	allowHeaders     string
	allowCredentials string
	maxAge           string
}

// NewPolicy builds a Policy from static configuration. Origins are folded
// to lower case once so that request-time matching is a map lookup.
func NewPolicy(cfg PolicyConfig) *Policy {
	origins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		origins[strings.ToLower(origin)] = struct{}{}
	}

	return &Policy{
		name:             cfg.Name,
		allowedOrigins:   origins,
		allowMethods:     strings.Join(cfg.AllowedMethods, ", "),
		allowHeaders:     strings.Join(cfg.AllowedHeaders, ", "),
		allowCredentials: strconv.FormatBool(cfg.AllowCredentials),
		maxAge:           strconv.Itoa(cfg.MaxAgeSeconds),
	}
}

// Name returns the policy name.
func (p *Policy) Name() string {
	return p.name
}

// IsOriginAllowed reports whether the origin case-insensitively matches an
// entry in the policy's allowed-origins set. The empty origin never matches.
func (p *Policy) IsOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := p.allowedOrigins[strings.ToLower(origin)]
	return ok
}

// WriteHeaders sets the CORS response headers for an allowed origin. The
// origin is echoed back verbatim and the credentials flag is always
// written, as "true" or "false".
func (p *Policy) WriteHeaders(w http.ResponseWriter, origin string) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", p.allowCredentials)
	h.Set("Access-Control-Max-Age", p.maxAge)
	h.Add("Vary", "Origin")
}

// WritePreflightHeaders sets the additional headers for an OPTIONS
// preflight response.
func (p *Policy) WritePreflightHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Methods", p.allowMethods)
	h.Set("Access-Control-Allow-Headers", p.allowHeaders)
}

// DefaultPublicPolicy returns the default policy for non-admin paths.
func DefaultPublicPolicy() *Policy {
	return NewPolicy(PolicyConfig{
		Name:           PolicyPublic,
		AllowedOrigins: []string{"http://localhost:4321"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Correlation-ID"},
		MaxAgeSeconds:  3600,
	})
}

// DefaultAdminPolicy returns the default policy for admin paths.
func DefaultAdminPolicy() *Policy {
	return NewPolicy(PolicyConfig{
		Name:             PolicyAdmin,
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Correlation-ID", "X-Authorization-Policy"},
		AllowCredentials: true,
		MaxAgeSeconds:    600,
	})
}
