// Package main is the entry point for the gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/axiom-software-co/international-center-gateway/internal/auth"
	"github.com/axiom-software-co/international-center-gateway/internal/authz"
	"github.com/axiom-software-co/international-center-gateway/internal/cache"
	"github.com/axiom-software-co/international-center-gateway/internal/config"
	"github.com/axiom-software-co/international-center-gateway/internal/cors"
	"github.com/axiom-software-co/international-center-gateway/internal/gateway"
	"github.com/axiom-software-co/international-center-gateway/internal/health"
	"github.com/axiom-software-co/international-center-gateway/internal/httperr"
	"github.com/axiom-software-co/international-center-gateway/internal/middleware"
	"github.com/axiom-software-co/international-center-gateway/internal/observability"
	"github.com/axiom-software-co/international-center-gateway/internal/proxy"
	"github.com/axiom-software-co/international-center-gateway/internal/ratelimit"
	"github.com/axiom-software-co/international-center-gateway/internal/ratelimit/store"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	logger := initLogger(flags)
	defer func() { _ = logger.Sync() }()

	cfg := loadConfig(flags.configPath, logger)

	app, cleanup := initApplication(cfg, logger)
	defer cleanup()

	run(app, cfg, logger)
}

func parseFlags() cliFlags {
	configPath := flag.String("config", getEnvOrDefault("GATEWAY_CONFIG_PATH", "configs/gateway.yaml"),
		"Path to configuration file")
	logLevel := flag.String("log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", "info"),
		"Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", "json"),
		"Log format (json, console)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

func printVersion() {
	fmt.Printf("gateway version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

func initLogger(flags cliFlags) observability.Logger {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  flags.logLevel,
		Format: flags.logFormat,
		Output: "stdout",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

// loadConfig reads the configuration file, falling back to defaults when
// the default path does not exist.
func loadConfig(path string, logger observability.Logger) *config.Config {
	logger.Info("starting gateway",
		observability.String("version", version),
		observability.String("config", path),
	)

	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !flagWasSet("config") {
			logger.Warn("no configuration file found, using defaults",
				observability.String("path", path),
			)
			return config.DefaultConfig()
		}
		logger.Fatal("failed to load configuration", observability.Error(err))
	}

	return cfg
}

func flagWasSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// application bundles the running pieces for startup and shutdown.
type application struct {
	listener *gateway.Listener
	tracer   *observability.Tracer
	checker  *health.Checker
}

func initApplication(cfg *config.Config, logger observability.Logger) (*application, func()) {
	translator := httperr.NewTranslator(
		httperr.WithTranslatorLogger(logger),
		httperr.WithDevelopmentMode(cfg.Server.Development),
	)

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  "gateway",
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracing", observability.Error(err))
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	checker := health.NewChecker(version)

	counterStore, coordinator := buildRateLimiter(cfg, checker, logger)

	responseCache := buildCache(cfg, checker, logger)

	forwarder, err := proxy.NewReverseProxy(proxy.Config{
		Upstream:         cfg.Upstream.URL,
		Timeout:          cfg.Upstream.Timeout.Std(),
		FlushInterval:    cfg.Upstream.FlushInterval.Std(),
		BreakerThreshold: cfg.Upstream.BreakerThreshold,
		BreakerTimeout:   cfg.Upstream.BreakerTimeout.Std(),
	}, translator, proxy.WithProxyLogger(logger))
	if err != nil {
		logger.Fatal("failed to initialize upstream proxy", observability.Error(err))
	}

	pipeline := gateway.BuildPipeline(gateway.PipelineDeps{
		Logger:      logger,
		Translator:  translator,
		ClientIPs:   middleware.NewClientIPExtractor(cfg.Server.TrustedProxies),
		Validator:   buildValidator(cfg, logger),
		CORS:        buildCORSResolver(cfg),
		Tracer:      tracer,
		Metrics:     metrics,
		RateLimiter: coordinator,
		Authn:       buildAuthn(cfg, logger),
		Authz:       authz.DefaultDispatcher(authz.WithDispatcherLogger(logger)),
		Forwarder:   forwarder,
		Cache:       responseCache,
		CacheTTL:    cfg.Cache.TTL.Std(),
	})

	listener := gateway.NewListener(
		cfg.Server,
		gateway.NewHandler(pipeline, checker, metrics),
		gateway.WithListenerLogger(logger),
	)

	app := &application{
		listener: listener,
		tracer:   tracer,
		checker:  checker,
	}

	cleanup := func() {
		if counterStore != nil {
			_ = counterStore.Close()
		}
		if responseCache != nil {
			_ = responseCache.Close()
		}
	}

	return app, cleanup
}

// buildCache wires the response cache backend. A configured Redis block
// selects the shared backend and registers it as a readiness dependency;
// otherwise entries live in process memory.
func buildCache(cfg *config.Config, checker *health.Checker, logger observability.Logger) cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}

	if cfg.Cache.Redis != nil {
		redisCfg := cache.DefaultRedisConfig()
		redisCfg.Address = cfg.Cache.Redis.Addr
		redisCfg.Password = cfg.Cache.Redis.Password
		redisCfg.DB = cfg.Cache.Redis.DB

		redisCache, err := cache.NewRedisCache(redisCfg)
		if err != nil {
			logger.Fatal("failed to connect to cache redis", observability.Error(err))
		}

		checker.Register("cache-redis", health.PingCheck(redisCache.Ping))
		return redisCache
	}

	return cache.NewMemoryCache()
}

// buildRateLimiter wires the counter store and both limiter dimensions.
// A configured Redis address selects the shared store and registers it as
// a readiness dependency; otherwise counting is in-process.
func buildRateLimiter(
	cfg *config.Config,
	checker *health.Checker,
	logger observability.Logger,
) (store.Store, *ratelimit.Coordinator) {
	if !cfg.RateLimit.IP.Enabled && !cfg.RateLimit.User.Enabled {
		return nil, nil
	}

	var counterStore store.Store
	if cfg.RateLimit.Redis.Addr != "" {
		redisCfg := store.DefaultRedisConfig()
		redisCfg.Address = cfg.RateLimit.Redis.Addr
		redisCfg.Password = cfg.RateLimit.Redis.Password
		redisCfg.DB = cfg.RateLimit.Redis.DB

		redisStore, err := store.NewRedisStore(redisCfg)
		if err != nil {
			logger.Fatal("failed to connect to redis", observability.Error(err))
		}
		counterStore = redisStore

		checker.Register("redis", health.PingCheck(redisStore.Ping))
	} else {
		counterStore = store.NewMemoryStore()
	}

	bypass := ratelimit.NewBypass(cfg.RateLimit.BypassCIDRs)

	dimension := func(name string, dim config.DimensionConfig) *ratelimit.DimensionLimiter {
		if !dim.Enabled {
			return nil
		}
		return ratelimit.NewDimensionLimiter(name, counterStore, ratelimit.Config{
			Enabled:       true,
			Limit:         dim.Limit,
			ElevatedLimit: dim.ElevatedLimit,
			Window:        dim.Window.Std(),
		}, ratelimit.WithBypass(bypass), ratelimit.WithLimiterLogger(logger))
	}

	coordinator := ratelimit.NewCoordinator(
		dimension(ratelimit.DimensionIP, cfg.RateLimit.IP),
		dimension(ratelimit.DimensionUser, cfg.RateLimit.User),
		ratelimit.WithCoordinatorLogger(logger),
	)

	return counterStore, coordinator
}

func buildValidator(cfg *config.Config, logger observability.Logger) *middleware.Validator {
	vCfg := middleware.DefaultValidationConfig()
	if len(cfg.Limits.AllowedMethods) > 0 {
		vCfg.AllowedMethods = cfg.Limits.AllowedMethods
	}
	if cfg.Limits.MaxBodySize > 0 {
		vCfg.MaxBodySize = cfg.Limits.MaxBodySize
	}
	vCfg.BurstRPS = cfg.Limits.BurstRPS
	vCfg.BurstSize = cfg.Limits.BurstSize

	return middleware.NewValidator(vCfg, middleware.WithValidatorLogger(logger))
}

func buildCORSResolver(cfg *config.Config) *cors.Resolver {
	public := cors.DefaultPublicPolicy()
	if cfg.CORS.Public != nil {
		public = cors.NewPolicy(*cfg.CORS.Public)
	}

	admin := cors.DefaultAdminPolicy()
	if cfg.CORS.Admin != nil {
		admin = cors.NewPolicy(*cfg.CORS.Admin)
	}

	return cors.NewResolver(cfg.CORS.AdminPathPrefix, public, admin)
}

// buildAuthn assembles the strategy chain: JWT first, then opaque API
// tokens, with anonymous as the terminal catch-all.
func buildAuthn(cfg *config.Config, logger observability.Logger) *auth.Dispatcher {
	var strategies []auth.Strategy

	if cfg.Auth.JWT != nil {
		jwtStrategy, err := auth.NewJWTStrategy(context.Background(), auth.JWTConfig{
			Secret:     cfg.Auth.JWT.Secret,
			JWKSURL:    cfg.Auth.JWT.JWKSURL,
			Issuer:     cfg.Auth.JWT.Issuer,
			Audience:   cfg.Auth.JWT.Audience,
			ClockSkew:  cfg.Auth.JWT.ClockSkew.Std(),
			RolesClaim: cfg.Auth.JWT.RolesClaim,
		})
		if err != nil {
			logger.Fatal("failed to initialize JWT authentication", observability.Error(err))
		}
		strategies = append(strategies, jwtStrategy)
	}

	if len(cfg.Auth.Tokens) > 0 {
		strategies = append(strategies, auth.NewAPITokenStrategy(cfg.Auth.Tokens))
	}

	strategies = append(strategies, auth.NewAnonymousStrategy())

	return auth.NewDispatcher(strategies, auth.WithDispatcherLogger(logger))
}

// run starts the listener and config watcher, then blocks until a
// shutdown signal arrives.
func run(app *application, cfg *config.Config, logger observability.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.listener.Start(ctx); err != nil {
		logger.Fatal("failed to start listener", observability.Error(err))
	}

	startConfigWatcher(ctx, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("shutdown signal received",
		observability.String("signal", sig.String()),
	)

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout.Std(),
	)
	defer shutdownCancel()

	if err := app.listener.Stop(shutdownCtx); err != nil {
		logger.Error("listener shutdown error", observability.Error(err))
	}

	if app.tracer != nil {
		traceCtx, traceCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := app.tracer.Shutdown(traceCtx); err != nil {
			logger.Error("tracer shutdown error", observability.Error(err))
		}
		traceCancel()
	}

	logger.Info("gateway stopped")
}

// startConfigWatcher watches the config file when one was read. Rate limit
// and CORS changes requiring new wiring take effect on restart; the
// watcher exists to surface invalid edits early in the logs.
func startConfigWatcher(ctx context.Context, logger observability.Logger) {
	path := getEnvOrDefault("GATEWAY_CONFIG_PATH", "configs/gateway.yaml")
	if _, err := os.Stat(path); err != nil {
		return
	}

	watcher, err := config.NewWatcher(path,
		func(newCfg *config.Config) {
			logger.Info("configuration file changed, restart to apply",
				observability.String("path", path),
			)
		},
		config.WithWatcherLogger(logger),
	)
	if err != nil {
		logger.Warn("config watcher unavailable", observability.Error(err))
		return
	}

	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher failed to start", observability.Error(err))
	}
}

func getEnvOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
