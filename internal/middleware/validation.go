package middleware

import (
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/axiom-software-co/international-center-gateway/internal/observability"
	"github.com/axiom-software-co/international-center-gateway/internal/util"
)

// Default request validation limits.
const (
	// DefaultMaxBodySize is the largest request body accepted, in bytes.
	DefaultMaxBodySize = 1 << 20 // 1 MiB

	// DefaultBurstRPS is the global burst guard rate.
	DefaultBurstRPS = 5000

	// DefaultBurstSize is the global burst guard bucket size.
	DefaultBurstSize = 1000
)

// ValidationConfig configures the request validation stage.
type ValidationConfig struct {
	// AllowedMethods is the HTTP method allowlist. Empty allows all.
	AllowedMethods []string

	// MaxBodySize is the request body limit in bytes. Zero disables it.
	MaxBodySize int64

	// BurstRPS and BurstSize configure the instance-wide burst guard
	// that sheds abusive traffic before any per-client accounting runs.
	// BurstRPS of zero disables the guard.
	BurstRPS  int
	BurstSize int
}

// DefaultValidationConfig returns the gateway's standard validation limits.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost,
			http.MethodPut, http.MethodPatch, http.MethodDelete,
			http.MethodOptions,
		},
		MaxBodySize: DefaultMaxBodySize,
		BurstRPS:    DefaultBurstRPS,
		BurstSize:   DefaultBurstSize,
	}
}

// Validator rejects malformed and abusive requests before they reach the
// policy stages.
type Validator struct {
	methods map[string]struct{}
	maxBody int64
	burst   *rate.Limiter
	logger  observability.Logger
}

// ValidatorOption is a functional option for the validator.
type ValidatorOption func(*Validator)

// WithValidatorLogger sets the logger.
func WithValidatorLogger(logger observability.Logger) ValidatorOption {
	return func(v *Validator) {
		v.logger = logger
	}
}

// NewValidator creates a validator from config.
func NewValidator(cfg ValidationConfig, opts ...ValidatorOption) *Validator {
	v := &Validator{
		maxBody: cfg.MaxBodySize,
		logger:  observability.NopLogger(),
	}

	if len(cfg.AllowedMethods) > 0 {
		v.methods = make(map[string]struct{}, len(cfg.AllowedMethods))
		for _, m := range cfg.AllowedMethods {
			v.methods[strings.ToUpper(m)] = struct{}{}
		}
	}

	if cfg.BurstRPS > 0 {
		burstSize := cfg.BurstSize
		if burstSize <= 0 {
			burstSize = cfg.BurstRPS
		}
		v.burst = rate.NewLimiter(rate.Limit(cfg.BurstRPS), burstSize)
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Handler returns the validation middleware.
func (v *Validator) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Context().Err() != nil {
				return
			}

			if v.methods != nil {
				if _, ok := v.methods[r.Method]; !ok {
					getStageMetrics().validationRejected.WithLabelValues("method").Inc()
					v.logger.WithContext(r.Context()).Warn("method not allowed",
						observability.String("method", r.Method),
						observability.String("path", r.URL.Path),
					)
					w.Header().Set(HeaderContentType, ContentTypeJSON)
					w.WriteHeader(http.StatusMethodNotAllowed)
					_, _ = io.WriteString(w, `{"error":"method not allowed"}`)
					return
				}
			}

			if v.burst != nil && !v.burst.Allow() {
				getStageMetrics().validationRejected.WithLabelValues("burst").Inc()
				v.logger.WithContext(r.Context()).Warn("burst guard tripped",
					observability.String("client_ip", util.ClientIPFromContext(r.Context())),
					observability.String("path", r.URL.Path),
				)
				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = io.WriteString(w, `{"error":"service unavailable"}`)
				return
			}

			if v.maxBody > 0 {
				if r.ContentLength > v.maxBody {
					getStageMetrics().validationRejected.WithLabelValues("body_size").Inc()
					v.logger.WithContext(r.Context()).Warn("request body too large",
						observability.Int64("content_length", r.ContentLength),
						observability.Int64("max_size", v.maxBody),
						observability.String("path", r.URL.Path),
					)
					w.Header().Set(HeaderContentType, ContentTypeJSON)
					w.WriteHeader(http.StatusRequestEntityTooLarge)
					_, _ = io.WriteString(w, `{"error":"request entity too large"}`)
					return
				}
				if r.Body != nil {
					r.Body = http.MaxBytesReader(w, r.Body, v.maxBody)
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
