// Package proxy forwards gateway requests to the upstream backend.
package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/axiom-software-co/international-center-gateway/internal/httperr"
	"github.com/axiom-software-co/international-center-gateway/internal/observability"
	"github.com/axiom-software-co/international-center-gateway/internal/util"
)

// hopHeaders are headers that must not be forwarded upstream.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder sends the request to its upstream and writes the response.
type Forwarder interface {
	http.Handler
}

// Config configures the reverse proxy forwarder.
type Config struct {
	// Upstream is the backend base URL, for example "http://127.0.0.1:8080".
	Upstream string `yaml:"upstream"`

	// Timeout bounds a single upstream exchange.
	Timeout time.Duration `yaml:"timeout"`

	// FlushInterval controls response streaming; negative flushes
	// immediately.
	FlushInterval time.Duration `yaml:"flushInterval"`

	// BreakerThreshold is the request count after which the failure
	// ratio is evaluated. Zero disables the circuit breaker.
	BreakerThreshold int `yaml:"breakerThreshold"`

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration `yaml:"breakerTimeout"`
}

// DefaultConfig returns the standard forwarder configuration.
func DefaultConfig() Config {
	return Config{
		Upstream:         "http://127.0.0.1:8080",
		Timeout:          30 * time.Second,
		FlushInterval:    -1,
		BreakerThreshold: 10,
		BreakerTimeout:   30 * time.Second,
	}
}

// ReverseProxy is the Forwarder implementation backed by
// httputil.ReverseProxy with circuit breaker protection on the transport.
type ReverseProxy struct {
	target     *url.URL
	proxy      *httputil.ReverseProxy
	breaker    *gobreaker.CircuitBreaker
	translator *httperr.Translator
	logger     observability.Logger
}

// Option is a functional option for the reverse proxy.
type Option func(*ReverseProxy)

// WithProxyLogger sets the logger.
func WithProxyLogger(logger observability.Logger) Option {
	return func(p *ReverseProxy) {
		p.logger = logger
	}
}

// WithTransport sets the upstream transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(p *ReverseProxy) {
		p.proxy.Transport = &breakerTransport{
			breaker: p.breaker,
			inner:   transport,
		}
	}
}

// NewReverseProxy creates a forwarder for the configured upstream.
func NewReverseProxy(cfg Config, translator *httperr.Translator, opts ...Option) (*ReverseProxy, error) {
	target, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, err
	}

	p := &ReverseProxy{
		target:     target,
		translator: translator,
		logger:     observability.NopLogger(),
	}

	if cfg.BreakerThreshold > 0 {
		p.breaker = newBreaker(cfg, p)
	}

	transport := defaultTransport(cfg.Timeout)

	p.proxy = &httputil.ReverseProxy{
		Rewrite:       p.rewrite,
		FlushInterval: cfg.FlushInterval,
		Transport: &breakerTransport{
			breaker: p.breaker,
			inner:   transport,
		},
		ErrorHandler: p.handleError,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

func newBreaker(cfg Config, p *ReverseProxy) *gobreaker.CircuitBreaker {
	threshold := uint32(cfg.BreakerThreshold)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "upstream",
		Interval: cfg.BreakerTimeout,
		Timeout:  cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= threshold && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Info("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		},
	})
}

func defaultTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}
}

// rewrite prepares the outbound request: target switch, hop-by-hop header
// removal, forwarding metadata.
func (p *ReverseProxy) rewrite(r *httputil.ProxyRequest) {
	r.SetURL(p.target)
	r.SetXForwarded()

	for _, h := range hopHeaders {
		r.Out.Header.Del(h)
	}

	if correlationID := util.CorrelationIDFromContext(r.In.Context()); correlationID != "" {
		r.Out.Header.Set("X-Correlation-ID", correlationID)
	}
}

// ServeHTTP implements Forwarder.
func (p *ReverseProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.proxy.ServeHTTP(w, r)
}

// handleError translates upstream failures. Open-circuit rejections and
// timeouts get their own categories so clients can tell a dead upstream
// from a slow one.
func (p *ReverseProxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		p.writeUnavailable(w, r, err)
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		p.translator.Write(r.Context(), w, httperr.New(httperr.KindTimeout, err))
	case errors.Is(err, context.Canceled):
		// The client went away; nothing useful to write.
		p.logger.WithContext(r.Context()).Debug("client canceled request",
			observability.String("path", r.URL.Path),
		)
	default:
		p.translator.Write(r.Context(), w, httperr.New(httperr.KindInternal, err))
	}
}

func (p *ReverseProxy) writeUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.WithContext(r.Context()).Warn("upstream circuit open",
		observability.String("path", r.URL.Path),
		observability.Error(err),
	)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "30")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(`{"error":"service unavailable","message":"upstream circuit open"}`))
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// breakerTransport runs each upstream exchange through the circuit
// breaker. A nil breaker passes straight through.
type breakerTransport struct {
	breaker *gobreaker.CircuitBreaker
	inner   http.RoundTripper
}

func (t *breakerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if t.breaker == nil {
		return t.inner.RoundTrip(r)
	}

	resp, err := t.breaker.Execute(func() (interface{}, error) {
		resp, err := t.inner.RoundTrip(r)
		if err != nil {
			return nil, err
		}
		// 5xx responses count as failures so the breaker opens on a
		// persistently broken upstream, not only on transport errors.
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstreamStatus
		}
		return resp, nil
	})
	if err != nil && !errors.Is(err, errUpstreamStatus) {
		return nil, err
	}

	return resp.(*http.Response), nil
}

// errUpstreamStatus marks a 5xx response as a breaker failure while still
// delivering the response to the client.
var errUpstreamStatus = errors.New("upstream returned server error")
