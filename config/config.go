// Package config loads healthprobe configuration from a YAML file,
// HEALTHPROBE_* environment variables and defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonwraymond/healthprobe/health"
	"github.com/jonwraymond/healthprobe/hostmetrics"
	"github.com/jonwraymond/healthprobe/observe"
	"github.com/jonwraymond/healthprobe/secret"
	"github.com/jonwraymond/healthprobe/store/mongostore"
	"github.com/jonwraymond/healthprobe/store/redisstore"
)

// EnvPrefix prefixes environment overrides: mongo.uri is HEALTHPROBE_MONGO_URI.
const EnvPrefix = "HEALTHPROBE"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all configuration for the probe service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Sampling   SamplingConfig   `mapstructure:"sampling"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Observe    ObserveConfig    `mapstructure:"observe"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxConcurrentProbes caps in-flight dependency probes; excess requests
	// get 429.
	MaxConcurrentProbes int `mapstructure:"max_concurrent_probes"`

	// RateLimit is the allowed requests per second across all routes; 0
	// disables limiting.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// ThresholdsConfig holds the default resource thresholds, in percent.
type ThresholdsConfig struct {
	CPU  int `mapstructure:"cpu"`
	RAM  int `mapstructure:"ram"`
	Disk int `mapstructure:"disk"`
}

// SamplingConfig configures host metric sampling.
type SamplingConfig struct {
	CPUWindow time.Duration `mapstructure:"cpu_window"`
	DiskPath  string        `mapstructure:"disk_path"`
}

// MongoConfig configures the MongoDB dependency probe.
type MongoConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URI          string        `mapstructure:"uri"`
	Database     string        `mapstructure:"database"`
	Collection   string        `mapstructure:"collection"`
	StageTimeout time.Duration `mapstructure:"stage_timeout"`
}

// RedisConfig configures the Redis dependency probe.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	TTL          time.Duration `mapstructure:"ttl"`
	StageTimeout time.Duration `mapstructure:"stage_timeout"`
}

// AuthConfig configures bearer JWT authentication on probe endpoints.
type AuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	HMACKey  string `mapstructure:"hmac_key"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`

	// RequiredRole, when set, must appear in the token's roles claim.
	RequiredRole string `mapstructure:"required_role"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	ServiceName     string  `mapstructure:"service_name"`
	TracingExporter string  `mapstructure:"tracing_exporter"`
	SamplePct       float64 `mapstructure:"sample_pct"`
	MetricsExporter string  `mapstructure:"metrics_exporter"`
	LogLevel        string  `mapstructure:"log_level"`
}

// SecretsConfig lists secret providers by name with their settings, e.g.
// {"file": {"dir": "/run/secrets"}}.
type SecretsConfig struct {
	Providers map[string]map[string]any `mapstructure:"providers"`
}

// Load reads configuration from file and environment variables, validates
// it, and resolves secret references in credential fields.
func Load(ctx context.Context, configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("healthprobe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/healthprobe/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.ResolveSecrets(ctx, secret.DefaultRegistry); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_concurrent_probes", 16)
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 20)

	v.SetDefault("thresholds.cpu", health.DefaultThreshold)
	v.SetDefault("thresholds.ram", health.DefaultThreshold)
	v.SetDefault("thresholds.disk", health.DefaultThreshold)

	v.SetDefault("sampling.cpu_window", health.DefaultCPUWindow.String())
	v.SetDefault("sampling.disk_path", hostmetrics.DefaultDiskPath)

	v.SetDefault("mongo.enabled", true)
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", mongostore.DefaultDatabase)
	v.SetDefault("mongo.collection", mongostore.DefaultCollection)
	v.SetDefault("mongo.stage_timeout", health.DefaultStageTimeout.String())

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", redisstore.DefaultKeyPrefix)
	v.SetDefault("redis.ttl", redisstore.DefaultTTL.String())
	v.SetDefault("redis.stage_timeout", health.DefaultStageTimeout.String())

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.hmac_key", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.required_role", "")

	v.SetDefault("observe.service_name", "healthprobe")
	v.SetDefault("observe.tracing_exporter", "none")
	v.SetDefault("observe.sample_pct", 1.0)
	v.SetDefault("observe.metrics_exporter", "prometheus")
	v.SetDefault("observe.log_level", "info")
}

// ResolveSecrets expands environment variables and secretref references in
// the credential fields, using providers created from reg.
func (c *Config) ResolveSecrets(ctx context.Context, reg *secret.Registry) error {
	resolver, err := secret.NewResolverFromRegistry(reg, true, c.Secrets.Providers)
	if err != nil {
		return fmt.Errorf("failed to configure secret providers: %w", err)
	}
	defer func() { _ = resolver.Close() }()

	if err := resolver.ResolveFields(ctx, map[string]*string{
		"mongo.uri":      &c.Mongo.URI,
		"redis.password": &c.Redis.Password,
		"auth.hmac_key":  &c.Auth.HMACKey,
	}); err != nil {
		return fmt.Errorf("failed to resolve secrets: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.MaxConcurrentProbes <= 0 {
		return fmt.Errorf("%w: server.max_concurrent_probes must be positive", ErrInvalidConfig)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("%w: server.rate_limit must not be negative", ErrInvalidConfig)
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst <= 0 {
		return fmt.Errorf("%w: server.rate_burst must be positive when rate limiting", ErrInvalidConfig)
	}
	if c.Sampling.CPUWindow <= 0 || c.Sampling.CPUWindow > health.MaxCPUWindow {
		return fmt.Errorf("%w: sampling.cpu_window must be in (0, %s]", ErrInvalidConfig, health.MaxCPUWindow)
	}
	if c.Mongo.Enabled && c.Mongo.URI == "" {
		return fmt.Errorf("%w: mongo.uri is required", ErrInvalidConfig)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required", ErrInvalidConfig)
	}
	if c.Auth.Enabled && c.Auth.HMACKey == "" {
		return fmt.Errorf("%w: auth.hmac_key is required when auth is enabled", ErrInvalidConfig)
	}
	obs := c.ObserveConfig("")
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultThresholds returns the configured default thresholds.
func (c *Config) DefaultThresholds() health.ThresholdSet {
	return health.ThresholdSet{
		CPUMax:  c.Thresholds.CPU,
		RAMMax:  c.Thresholds.RAM,
		DiskMax: c.Thresholds.Disk,
	}
}

// MongoStore returns the mongostore settings.
func (c *Config) MongoStore() mongostore.Config {
	return mongostore.Config{
		URI:        c.Mongo.URI,
		Database:   c.Mongo.Database,
		Collection: c.Mongo.Collection,
		Timeout:    c.Mongo.StageTimeout,
	}
}

// RedisStore returns the redisstore settings.
func (c *Config) RedisStore() redisstore.Config {
	return redisstore.Config{
		Addr:      c.Redis.Addr,
		Password:  c.Redis.Password,
		DB:        c.Redis.DB,
		KeyPrefix: c.Redis.KeyPrefix,
		TTL:       c.Redis.TTL,
	}
}

// ObserveConfig returns the observer settings. A "none" exporter disables
// the corresponding signal.
func (c *Config) ObserveConfig(version string) observe.Config {
	o := c.Observe
	return observe.Config{
		ServiceName: o.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   o.TracingExporter != "" && o.TracingExporter != "none",
			Exporter:  o.TracingExporter,
			SamplePct: o.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  o.MetricsExporter != "" && o.MetricsExporter != "none",
			Exporter: o.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   o.LogLevel,
		},
	}
}
