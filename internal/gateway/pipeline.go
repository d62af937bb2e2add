// Package gateway assembles the middleware pipeline and runs the HTTP
// listener.
package gateway

import (
	"net/http"
	"time"

	"github.com/axiom-software-co/international-center-gateway/internal/auth"
	"github.com/axiom-software-co/international-center-gateway/internal/authz"
	"github.com/axiom-software-co/international-center-gateway/internal/cache"
	"github.com/axiom-software-co/international-center-gateway/internal/cors"
	"github.com/axiom-software-co/international-center-gateway/internal/health"
	"github.com/axiom-software-co/international-center-gateway/internal/httperr"
	"github.com/axiom-software-co/international-center-gateway/internal/middleware"
	"github.com/axiom-software-co/international-center-gateway/internal/observability"
	"github.com/axiom-software-co/international-center-gateway/internal/ratelimit"
)

// PipelineDeps carries everything the pipeline stages need. Optional
// fields may be nil; their stages are then skipped.
type PipelineDeps struct {
	Logger     observability.Logger
	Translator *httperr.Translator

	ClientIPs *middleware.ClientIPExtractor
	Validator *middleware.Validator
	CORS      *cors.Resolver

	// Cache backs the pass-through response cache; nil disables it.
	Cache    cache.Cache
	CacheTTL time.Duration

	Tracer  *observability.Tracer
	Metrics *observability.Metrics

	RateLimiter *ratelimit.Coordinator
	Authn       *auth.Dispatcher
	Authz       *authz.Dispatcher

	// Forwarder is the terminal handler, normally the reverse proxy.
	Forwarder http.Handler
}

// BuildPipeline chains the middleware stages around the forwarder. The
// order is load-bearing: identity stamping and shaping run before the
// error boundary, everything that can fail or reject runs behind it so
// failures surface as one translated envelope with correlation metadata
// and CORS headers already applied.
func BuildPipeline(deps PipelineDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	// Innermost first: the forwarder sits at the center.
	handler := deps.Forwarder

	handler = middleware.Harden()(handler)

	if deps.Authz != nil {
		handler = middleware.Authorize(deps.Authz, deps.Translator)(handler)
	}

	if deps.Authn != nil {
		handler = middleware.Authenticate(deps.Authn, logger)(handler)
	}

	if deps.RateLimiter != nil {
		handler = middleware.RateLimit(deps.RateLimiter, deps.Translator, logger)(handler)
	}

	if deps.Metrics != nil {
		handler = observability.MetricsMiddleware(deps.Metrics)(handler)
	}

	if deps.Tracer != nil {
		handler = observability.TracingMiddleware(deps.Tracer)(handler)
	}

	handler = middleware.Logging(logger)(handler)

	handler = middleware.Boundary(deps.Translator, logger)(handler)

	if deps.CORS != nil {
		handler = middleware.CORS(deps.CORS, logger)(handler)
	}

	if deps.Validator != nil {
		handler = deps.Validator.Handler()(handler)
	}

	handler = middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig())(handler)

	if deps.Cache != nil {
		handler = middleware.ResponseCache(deps.Cache, deps.CacheTTL, logger)(handler)
	}

	handler = middleware.Compression()(handler)

	handler = middleware.ClientIP(deps.ClientIPs)(handler)

	handler = middleware.CorrelationID()(handler)

	return handler
}

// NewHandler mounts the pipeline alongside the operational endpoints.
// Probes and metrics are served outside the pipeline so a tripped rate
// limit or open circuit never hides the gateway's own state.
func NewHandler(pipeline http.Handler, checker *health.Checker, metrics *observability.Metrics) http.Handler {
	mux := http.NewServeMux()

	if checker != nil {
		mux.HandleFunc("/healthz", checker.LivenessHandler())
		mux.HandleFunc("/readyz", checker.ReadinessHandler())
	}

	if metrics != nil {
		mux.Handle("/metrics", metrics.Handler())
	}

	mux.Handle("/", pipeline)

	return mux
}
