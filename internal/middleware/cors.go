package middleware

import (
	"net/http"

	"github.com/axiom-software-co/international-center-gateway/internal/cors"
	"github.com/axiom-software-co/international-center-gateway/internal/observability"
)

// CORS returns a middleware that applies the path-resolved CORS policy.
// Preflight requests are answered directly with 204 and never reach the
// stages behind this one. Requests from disallowed origins proceed without
// CORS headers; the browser enforces the block.
func CORS(resolver *cors.Resolver, logger observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Context().Err() != nil {
				return
			}

			origin := r.Header.Get(HeaderOrigin)

			// Non-CORS requests (no Origin header) pass straight through.
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			policy := resolver.Resolve(r.URL.Path)
			allowed := policy.IsOriginAllowed(origin)

			if r.Method == http.MethodOptions {
				if allowed {
					getStageMetrics().corsRequestsTotal.WithLabelValues("preflight").Inc()
					policy.WriteHeaders(w, origin)
					policy.WritePreflightHeaders(w)
				} else {
					getStageMetrics().corsRequestsTotal.WithLabelValues("preflight_denied").Inc()
					logger.WithContext(r.Context()).Debug("preflight from disallowed origin",
						observability.String("origin", origin),
						observability.String("path", r.URL.Path),
					)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed {
				getStageMetrics().corsRequestsTotal.WithLabelValues("allowed").Inc()
				policy.WriteHeaders(w, origin)
			} else {
				getStageMetrics().corsRequestsTotal.WithLabelValues("denied").Inc()
			}

			next.ServeHTTP(w, r)
		})
	}
}
