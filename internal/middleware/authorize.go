package middleware

import (
	"net/http"

	"github.com/axiom-software-co/international-center-gateway/internal/auth"
	"github.com/axiom-software-co/international-center-gateway/internal/authz"
	"github.com/axiom-software-co/international-center-gateway/internal/httperr"
)

// Authorize returns the authorization middleware. Denied requests are
// short-circuited with a 401 when no principal was established, or a 403
// when the authenticated principal lacks the required rights.
func Authorize(dispatcher *authz.Dispatcher, translator *httperr.Translator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFromContext(r.Context())

			decision := dispatcher.Authorize(r.Context(), principal, r)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			// An anonymous request denied by a known policy gets a
			// bearer challenge rather than a bare 403: credentials
			// might fix it, and the client should be told so.
			if principal == nil && decision.Strategy != "" {
				auth.ChallengeHeader(w)
				translator.Write(r.Context(), w, httperr.New(httperr.KindAuthenticationRequired, nil))
				return
			}

			translator.Write(r.Context(), w, httperr.New(httperr.KindForbidden, nil))
		})
	}
}
