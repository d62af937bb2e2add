package middleware

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/axiom-software-co/international-center-gateway/internal/auth"
	"github.com/axiom-software-co/international-center-gateway/internal/httperr"
	"github.com/axiom-software-co/international-center-gateway/internal/observability"
	"github.com/axiom-software-co/international-center-gateway/internal/ratelimit"
	"github.com/axiom-software-co/international-center-gateway/internal/util"
)

// userIdentifier resolves the identifier used for the user rate limit
// dimension. An explicit X-User-ID header wins, then an authenticated
// principal, then the client IP so anonymous traffic still has a user
// budget.
func userIdentifier(r *http.Request, clientIP string) string {
	if id := r.Header.Get(HeaderXUserID); id != "" {
		return id
	}
	if p := auth.PrincipalFromContext(r.Context()); p != nil {
		if id := p.Identifier(); id != "" {
			return id
		}
	}
	return clientIP
}

// recordDimension counts the decision for one rate limit dimension.
func recordDimension(decision *ratelimit.Decision, dimension string) {
	if decision == nil {
		return
	}
	if decision.Allowed {
		getStageMetrics().rateLimitAllowed.WithLabelValues(dimension).Inc()
	} else {
		getStageMetrics().rateLimitRejected.WithLabelValues(dimension).Inc()
	}
}

// RateLimit returns the rate limiting middleware. Every response carries
// X-RateLimit-Limit and X-RateLimit-Remaining; denied requests get 429
// with a Retry-After derived from the window. Counter store failures fail
// open: availability over strict enforcement.
func RateLimit(
	coordinator *ratelimit.Coordinator,
	translator *httperr.Translator,
	logger observability.Logger,
) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		if coordinator == nil || !coordinator.Enabled() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := util.ClientIPFromContext(r.Context())
			if clientIP == "" {
				clientIP = stripPort(r.RemoteAddr)
			}
			userID := userIdentifier(r, clientIP)

			outcome, err := coordinator.Evaluate(r.Context(), clientIP, userID)
			if err != nil {
				// A cancelled or timed-out request aborts here; only
				// genuine store failures fail open.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					translator.Write(r.Context(), w, err)
					return
				}

				logger.WithContext(r.Context()).Error("rate limit evaluation failed, allowing request",
					observability.Error(err),
					observability.String("client_ip", clientIP),
				)
				next.ServeHTTP(w, r)
				return
			}

			recordDimension(outcome.IP, "ip")
			recordDimension(outcome.User, "user")

			w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(outcome.Limit))
			w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(outcome.Remaining))

			if !outcome.Allowed {
				logger.WithContext(r.Context()).Warn("rate limit exceeded",
					observability.String("client_ip", clientIP),
					observability.String("user_id", userID),
					observability.String("path", r.URL.Path),
					observability.Int("limit", outcome.Limit),
				)

				retryAfter := int(math.Ceil(outcome.Window.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set(HeaderRetryAfter, strconv.Itoa(retryAfter))

				translator.Write(r.Context(), w, httperr.New(httperr.KindRateLimited, nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
