package middleware

import (
	"net/http"

	"github.com/axiom-software-co/international-center-gateway/internal/auth"
	"github.com/axiom-software-co/international-center-gateway/internal/observability"
)

// Authenticate returns the authentication middleware. It runs the strategy
// dispatcher and stores the resulting principal, if any, in the request
// context. Authentication failure does not reject the request: the request
// continues anonymously and the authorization stage decides whether
// anonymous access suffices.
func Authenticate(dispatcher *auth.Dispatcher, logger observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, strategy := dispatcher.Authenticate(r.Context(), r)

			if principal != nil {
				logger.WithContext(r.Context()).Debug("request authenticated",
					observability.String("subject", principal.Subject),
					observability.String("strategy", strategy),
				)
				r = r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
			}

			next.ServeHTTP(w, r)
		})
	}
}
