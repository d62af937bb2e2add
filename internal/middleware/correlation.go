package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/axiom-software-co/international-center-gateway/internal/util"
)

// CorrelationID returns a middleware that assigns each request a
// correlation identifier. An inbound X-Correlation-ID header is honored so
// identifiers survive multi-hop traces; otherwise a new UUID is generated.
func CorrelationID() func(http.Handler) http.Handler {
	return CorrelationIDWithGenerator(func() string {
		return uuid.New().String()
	})
}

// CorrelationIDWithGenerator returns a correlation middleware using a
// custom identifier generator.
func CorrelationIDWithGenerator(generator func() string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get(HeaderXCorrelationID)
			if correlationID == "" {
				correlationID = generator()
			}

			ctx := util.ContextWithCorrelationID(r.Context(), correlationID)
			r = r.WithContext(ctx)

			w.Header().Set(HeaderXCorrelationID, correlationID)

			next.ServeHTTP(w, r)
		})
	}
}
