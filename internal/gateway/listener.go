package gateway

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/axiom-software-co/international-center-gateway/internal/config"
	"github.com/axiom-software-co/international-center-gateway/internal/observability"
)

// Listener runs the gateway's HTTP server with graceful shutdown.
type Listener struct {
	cfg     config.ServerConfig
	handler http.Handler
	logger  observability.Logger
	server  *http.Server
	running atomic.Bool
	addr    atomic.Value
}

// ListenerOption is a functional option for the listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger.
func WithListenerLogger(logger observability.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener for the given handler.
func NewListener(cfg config.ServerConfig, handler http.Handler, opts ...ListenerOption) *Listener {
	l := &Listener{
		cfg:     cfg,
		handler: handler,
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Addr returns the bound address once started, or the configured address
// before that. Useful when the configuration asks for port 0.
func (l *Listener) Addr() string {
	if addr, ok := l.addr.Load().(string); ok {
		return addr
	}
	return l.cfg.Address
}

// Start binds the address and serves in the background.
func (l *Listener) Start(ctx context.Context) error {
	if l.running.Load() {
		return fmt.Errorf("listener already running on %s", l.cfg.Address)
	}

	l.server = &http.Server{
		Addr:              l.cfg.Address,
		Handler:           l.handler,
		ReadTimeout:       l.cfg.ReadTimeout.Std(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      l.cfg.WriteTimeout.Std(),
		IdleTimeout:       l.cfg.IdleTimeout.Std(),
		MaxHeaderBytes:    1 << 20,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.cfg.Address, err)
	}

	l.running.Store(true)
	l.addr.Store(ln.Addr().String())

	l.logger.Info("listener started",
		observability.String("address", ln.Addr().String()),
	)

	go l.serve(ln)

	return nil
}

func (l *Listener) serve(ln net.Listener) {
	err := l.server.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		l.logger.Error("listener error",
			observability.String("address", l.cfg.Address),
			observability.Error(err),
		)
	}
	l.running.Store(false)
}

// Stop drains in-flight requests and shuts the server down. The context
// bounds the drain; on expiry the server is closed hard.
func (l *Listener) Stop(ctx context.Context) error {
	if !l.running.Load() {
		return nil
	}

	l.logger.Info("stopping listener",
		observability.String("address", l.cfg.Address),
	)

	if err := l.server.Shutdown(ctx); err != nil {
		if closeErr := l.server.Close(); closeErr != nil {
			return fmt.Errorf("shutdown: %w, close: %w", err, closeErr)
		}
		return err
	}

	return nil
}

// Running reports whether the listener is serving.
func (l *Listener) Running() bool {
	return l.running.Load()
}
