package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from a YAML file using viper.
// It supports:
// - YAML configuration files
// - Environment variable substitution with PROBSYNC_ prefix
// - Default values for common settings
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Environment variable support
	v.SetEnvPrefix("PROBSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	// Set defaults
	setDefaults(v)

	// Read configuration file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply post-processing defaults
	applyDefaults(&cfg)

	return &cfg, nil
}

// bindEnvVars binds specific environment variables to config keys.
func bindEnvVars(v *viper.Viper) {
	// Identity provider
	_ = v.BindEnv("auth.provider.issuer_url", "OIDC_ISSUER_URL")
	_ = v.BindEnv("auth.provider.client_id", "OIDC_CLIENT_ID")
	_ = v.BindEnv("auth.provider.client_secret", "OIDC_CLIENT_SECRET")
	_ = v.BindEnv("auth.provider.redirect_url", "OIDC_REDIRECT_URL")

	// Session secrets
	_ = v.BindEnv("auth.signing_key", "JWT_SIGNING_KEY")

	// Redis
	_ = v.BindEnv("kv.redis.password", "REDIS_PASSWORD")

	// Server
	_ = v.BindEnv("server.http_port", "HTTP_PORT")

	// Logging
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	// Dev mode
	_ = v.BindEnv("dev_mode", "DEV_MODE")
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.app_root", "/")

	// Auth defaults
	v.SetDefault("auth.provider.scopes", []string{"openid", "profile", "email"})

	// Session defaults
	v.SetDefault("session.cookie_name", "auth_token")
	v.SetDefault("session.secure", true)

	// KV defaults
	v.SetDefault("kv.type", "redis")
	v.SetDefault("kv.redis.addresses", []string{"localhost:6379"})
	v.SetDefault("kv.redis.pool_size", 10)
	v.SetDefault("kv.redis.min_idle_conns", 5)
	v.SetDefault("kv.redis.key_prefix", "probsync:")

	// Rate limit defaults
	v.SetDefault("rate_limit.auth.max", 10)
	v.SetDefault("rate_limit.auth.window", "60s")
	v.SetDefault("rate_limit.data.max", 30)
	v.SetDefault("rate_limit.data.window", "60s")

	// Observability defaults
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.protocol", "grpc")
	v.SetDefault("observability.tracing.insecure", true)
	v.SetDefault("observability.tracing.sampling_ratio", 1.0)

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// applyDefaults applies default values to configuration after unmarshaling.
// This handles cases where viper defaults don't work well with nested structs.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.AppRoot == "" {
		cfg.Server.AppRoot = "/"
	}

	// Auth defaults
	if len(cfg.Auth.Provider.Scopes) == 0 {
		cfg.Auth.Provider.Scopes = []string{"openid", "profile", "email"}
	}

	// Session defaults
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "auth_token"
	}

	// KV defaults
	if cfg.KV.Type == "" {
		cfg.KV.Type = "redis"
	}
	if len(cfg.KV.Redis.Addresses) == 0 {
		cfg.KV.Redis.Addresses = []string{"localhost:6379"}
	}
	if cfg.KV.Redis.PoolSize == 0 {
		cfg.KV.Redis.PoolSize = 10
	}
	if cfg.KV.Redis.MinIdleConns == 0 {
		cfg.KV.Redis.MinIdleConns = 5
	}
	if cfg.KV.Redis.KeyPrefix == "" {
		cfg.KV.Redis.KeyPrefix = "probsync:"
	}

	// Rate limit defaults
	if cfg.RateLimit.Auth.Max == 0 {
		cfg.RateLimit.Auth.Max = 10
	}
	if cfg.RateLimit.Auth.Window == 0 {
		cfg.RateLimit.Auth.Window = 60 * time.Second
	}
	if cfg.RateLimit.Data.Max == 0 {
		cfg.RateLimit.Data.Max = 30
	}
	if cfg.RateLimit.Data.Window == 0 {
		cfg.RateLimit.Data.Window = 60 * time.Second
	}

	// Observability defaults
	if cfg.Observability.Tracing.Endpoint == "" {
		cfg.Observability.Tracing.Endpoint = "localhost:4317"
	}
	if cfg.Observability.Tracing.Protocol == "" {
		cfg.Observability.Tracing.Protocol = "grpc"
	}
	if cfg.Observability.Tracing.SamplingRatio == 0 {
		cfg.Observability.Tracing.SamplingRatio = 1.0
	}

	// Logging defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromString loads configuration from a YAML string (useful for testing).
func LoadFromString(yamlStr string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlStr)); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}
