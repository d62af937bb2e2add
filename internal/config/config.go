// Package config defines the gateway's YAML configuration, loading, and
// hot reload.
package config

import (
	"fmt"
	"time"

	"github.com/axiom-software-co/international-center-gateway/internal/auth"
	"github.com/axiom-software-co/international-center-gateway/internal/cors"
)

// Duration wraps time.Duration for human-readable YAML values like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Cache     CacheConfig     `yaml:"cache"`
	CORS      CORSConfig      `yaml:"cors"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// ServerConfig configures the gateway listener.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`

	// TrustedProxies are CIDRs whose X-Forwarded-For chains are honored.
	TrustedProxies []string `yaml:"trustedProxies"`

	// Development enables verbose error responses. Never set in
	// production.
	Development bool `yaml:"development"`
}

// UpstreamConfig configures the backend the gateway fronts.
type UpstreamConfig struct {
	URL              string   `yaml:"url"`
	Timeout          Duration `yaml:"timeout"`
	FlushInterval    Duration `yaml:"flushInterval"`
	BreakerThreshold int      `yaml:"breakerThreshold"`
	BreakerTimeout   Duration `yaml:"breakerTimeout"`
}

// DimensionConfig configures one rate limiting dimension.
type DimensionConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Limit         int      `yaml:"limit"`
	ElevatedLimit int      `yaml:"elevatedLimit"`
	Window        Duration `yaml:"window"`
}

// RedisConfig configures the distributed counter store. An empty Addr
// selects the in-process store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig configures the composite rate limiter.
type RateLimitConfig struct {
	IP          DimensionConfig `yaml:"ip"`
	User        DimensionConfig `yaml:"user"`
	Redis       RedisConfig     `yaml:"redis"`
	BypassCIDRs []string        `yaml:"bypassCidrs"`
}

// CacheConfig configures the pass-through response cache. A nil Redis
// block selects the in-process backend.
type CacheConfig struct {
	Enabled bool         `yaml:"enabled"`
	TTL     Duration     `yaml:"ttl"`
	Redis   *RedisConfig `yaml:"redis"`
}

// CORSConfig configures the policy set and path routing between them.
type CORSConfig struct {
	AdminPathPrefix string             `yaml:"adminPathPrefix"`
	Public          *cors.PolicyConfig `yaml:"public"`
	Admin           *cors.PolicyConfig `yaml:"admin"`
}

// JWTConfig configures bearer token verification.
type JWTConfig struct {
	Secret     string   `yaml:"secret"`
	JWKSURL    string   `yaml:"jwksUrl"`
	Issuer     string   `yaml:"issuer"`
	Audience   string   `yaml:"audience"`
	ClockSkew  Duration `yaml:"clockSkew"`
	RolesClaim string   `yaml:"rolesClaim"`
}

// AuthConfig configures the authentication strategies.
type AuthConfig struct {
	JWT    *JWTConfig        `yaml:"jwt"`
	Tokens []auth.TokenEntry `yaml:"tokens"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// MetricsConfig configures Prometheus exposure.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// LimitsConfig configures the request validation stage.
type LimitsConfig struct {
	AllowedMethods []string `yaml:"allowedMethods"`
	MaxBodySize    int64    `yaml:"maxBodySize"`
	BurstRPS       int      `yaml:"burstRps"`
	BurstSize      int      `yaml:"burstSize"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8090",
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(60 * time.Second),
			IdleTimeout:     Duration(120 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Upstream: UpstreamConfig{
			URL:              "http://127.0.0.1:8080",
			Timeout:          Duration(30 * time.Second),
			BreakerThreshold: 10,
			BreakerTimeout:   Duration(30 * time.Second),
		},
		RateLimit: RateLimitConfig{
			IP: DimensionConfig{
				Enabled:       true,
				Limit:         1000,
				ElevatedLimit: 5000,
				Window:        Duration(time.Minute),
			},
			User: DimensionConfig{
				Enabled:       true,
				Limit:         1000,
				ElevatedLimit: 5000,
				Window:        Duration(time.Minute),
			},
		},
		Cache: CacheConfig{
			TTL: Duration(time.Minute),
		},
		CORS: CORSConfig{
			AdminPathPrefix: "/api/admin",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Tracing: TracingConfig{
			SamplingRate: 1.0,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "gateway",
		},
		Limits: LimitsConfig{
			MaxBodySize: 1 << 20,
			BurstRPS:    5000,
			BurstSize:   1000,
		},
	}
}

// Validate checks the configuration for inconsistencies that would only
// surface at request time.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}

	if c.Upstream.URL == "" {
		return fmt.Errorf("upstream.url must not be empty")
	}

	for _, dim := range []struct {
		name string
		cfg  DimensionConfig
	}{
		{"rateLimit.ip", c.RateLimit.IP},
		{"rateLimit.user", c.RateLimit.User},
	} {
		if !dim.cfg.Enabled {
			continue
		}
		if dim.cfg.Limit <= 0 {
			return fmt.Errorf("%s.limit must be positive, got %d", dim.name, dim.cfg.Limit)
		}
		if dim.cfg.Window.Std() <= 0 {
			return fmt.Errorf("%s.window must be positive", dim.name)
		}
		if dim.cfg.ElevatedLimit > 0 && dim.cfg.ElevatedLimit < dim.cfg.Limit {
			return fmt.Errorf("%s.elevatedLimit must not be below limit", dim.name)
		}
	}

	if c.Cache.Enabled && c.Cache.TTL.Std() <= 0 {
		return fmt.Errorf("cache.ttl must be positive when caching is enabled")
	}

	if c.Auth.JWT != nil && c.Auth.JWT.Secret == "" && c.Auth.JWT.JWKSURL == "" {
		return fmt.Errorf("auth.jwt requires either secret or jwksUrl")
	}

	for i, entry := range c.Auth.Tokens {
		if entry.Subject == "" {
			return fmt.Errorf("auth.tokens[%d].subject must not be empty", i)
		}
		if entry.Hash == "" {
			return fmt.Errorf("auth.tokens[%d].hash must not be empty", i)
		}
	}

	return nil
}
