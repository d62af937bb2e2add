package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/axiom-software-co/international-center-gateway/internal/httperr"
	"github.com/axiom-software-co/international-center-gateway/internal/observability"
)

// Boundary returns the error boundary middleware. It recovers panics from
// the stages behind it and translates them through the error translator,
// so exactly one error envelope leaves the gateway no matter where the
// failure happened.
func Boundary(translator *httperr.Translator, logger observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := wrapResponseWriter(w)

			defer func() {
				if v := recover(); v != nil {
					getStageMetrics().panicsRecovered.Inc()

					// A partial response cannot be rewritten. Abort the
					// connection so the client sees the truncation
					// instead of a clean EOF.
					if rw.Written() {
						logger.WithContext(r.Context()).Warn("panic after response started, aborting connection",
							observability.String("path", r.URL.Path),
							observability.String("method", r.Method),
							observability.Any("error", v),
							observability.String("stack", string(debug.Stack())),
						)
						panic(http.ErrAbortHandler)
					}

					logger.WithContext(r.Context()).Error("panic recovered",
						observability.String("path", r.URL.Path),
						observability.String("method", r.Method),
						observability.Any("error", v),
						observability.String("stack", string(debug.Stack())),
					)

					translator.Write(r.Context(), rw, httperr.New(
						httperr.KindInternal,
						fmt.Errorf("panic: %v", v),
					))
				}
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
