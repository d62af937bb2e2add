package middleware

import (
	"net/http"
	"time"

	"github.com/axiom-software-co/international-center-gateway/internal/observability"
	"github.com/axiom-software-co/international-center-gateway/internal/util"
)

// Logging returns a middleware that emits one structured access log line
// per request.
func Logging(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := util.ContextWithStartTime(r.Context(), start)
			r = r.WithContext(ctx)

			rw := wrapResponseWriter(w)

			next.ServeHTTP(rw, r)

			duration := time.Since(start)

			logger.WithContext(r.Context()).Info("http request",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.String("query", r.URL.RawQuery),
				observability.Int("status", rw.Status()),
				observability.Int("size", rw.Size()),
				observability.Duration("duration", duration),
				observability.String("client_ip", util.ClientIPFromContext(r.Context())),
				observability.String("user_agent", r.UserAgent()),
			)
		})
	}
}
