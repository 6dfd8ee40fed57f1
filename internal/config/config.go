package config

import "time"

// Config represents the main application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Auth          AuthConfig          `yaml:"auth" mapstructure:"auth"`
	Session       SessionConfig       `yaml:"session" mapstructure:"session"`
	KV            KVConfig            `yaml:"kv" mapstructure:"kv"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" mapstructure:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Log           LogConfig           `yaml:"log" mapstructure:"log"`
	DevMode       bool                `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `yaml:"level" mapstructure:"level"`             // debug, info, warn, error
	Development bool   `yaml:"development" mapstructure:"development"` // Enable development mode
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	HTTPPort int `yaml:"http_port" mapstructure:"http_port"`
	// AppRoot is the path the app is served under; scopes the session
	// cookie and the post-login redirect.
	AppRoot string `yaml:"app_root" mapstructure:"app_root"`
}

// AuthConfig represents identity provider configuration
type AuthConfig struct {
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	// SigningKey is the server secret used to sign session tokens.
	SigningKey string `yaml:"signing_key" mapstructure:"signing_key"`
	// AllowedRedirectURLs is the explicit allow-list for the OAuth
	// redirect URI. When unset, only localhost redirect URIs are
	// accepted (test fallback).
	AllowedRedirectURLs []string `yaml:"allowed_redirect_urls" mapstructure:"allowed_redirect_urls"`
}

// ProviderConfig represents the OIDC identity provider
type ProviderConfig struct {
	IssuerURL    string   `yaml:"issuer_url" mapstructure:"issuer_url"`
	ClientID     string   `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string   `yaml:"client_secret" mapstructure:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url" mapstructure:"redirect_url"`
	Scopes       []string `yaml:"scopes" mapstructure:"scopes"`
}

// SessionConfig represents session cookie configuration
type SessionConfig struct {
	CookieName string `yaml:"cookie_name" mapstructure:"cookie_name"`
	Secure     bool   `yaml:"secure" mapstructure:"secure"`
}

// KVConfig represents the shared key-value store configuration
type KVConfig struct {
	// Type is the store type: "memory" or "redis"
	Type  string      `yaml:"type" mapstructure:"type"`
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig represents Redis store configuration
type RedisConfig struct {
	Addresses    []string `yaml:"addresses" mapstructure:"addresses"`
	Password     string   `yaml:"password" mapstructure:"password"`
	DB           int      `yaml:"db" mapstructure:"db"`
	MasterName   string   `yaml:"master_name" mapstructure:"master_name"` // For Sentinel
	PoolSize     int      `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	KeyPrefix    string   `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// RateLimitConfig holds the two limiter configurations
type RateLimitConfig struct {
	Auth WindowConfig `yaml:"auth" mapstructure:"auth"`
	Data WindowConfig `yaml:"data" mapstructure:"data"`
}

// WindowConfig is a single sliding-window limit
type WindowConfig struct {
	Max    int           `yaml:"max" mapstructure:"max"`
	Window time.Duration `yaml:"window" mapstructure:"window"`
}

// ObservabilityConfig represents metrics and tracing configuration
type ObservabilityConfig struct {
	MetricsEnabled bool          `yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
	Tracing        TracingConfig `yaml:"tracing" mapstructure:"tracing"`
}

// TracingConfig represents OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled       bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint      string  `yaml:"endpoint" mapstructure:"endpoint"`
	Protocol      string  `yaml:"protocol" mapstructure:"protocol"` // grpc or http
	Insecure      bool    `yaml:"insecure" mapstructure:"insecure"`
	SamplingRatio float64 `yaml:"sampling_ratio" mapstructure:"sampling_ratio"`
}
