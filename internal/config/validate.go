package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "validation errors:\n  - " + strings.Join(msgs, "\n  - ")
}

// Validate validates the configuration
func Validate(cfg *Config) error {
	var errs ValidationErrors

	// Validate KV store type
	if cfg.KV.Type != "memory" && cfg.KV.Type != "redis" {
		errs = append(errs, ValidationError{
			Field:   "kv.type",
			Message: fmt.Sprintf("must be 'memory' or 'redis', got '%s'", cfg.KV.Type),
		})
	}

	if cfg.KV.Type == "redis" && len(cfg.KV.Redis.Addresses) == 0 {
		errs = append(errs, ValidationError{
			Field:   "kv.redis.addresses",
			Message: "at least one address required",
		})
	}

	// Validate identity provider (unless dev mode, which uses the mock provider)
	if !cfg.DevMode {
		if cfg.Auth.Provider.IssuerURL == "" {
			errs = append(errs, ValidationError{
				Field:   "auth.provider.issuer_url",
				Message: "required",
			})
		} else if _, err := url.Parse(cfg.Auth.Provider.IssuerURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "auth.provider.issuer_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}

		if cfg.Auth.Provider.ClientID == "" {
			errs = append(errs, ValidationError{
				Field:   "auth.provider.client_id",
				Message: "required",
			})
		}

		if cfg.Auth.Provider.ClientSecret == "" {
			errs = append(errs, ValidationError{
				Field:   "auth.provider.client_secret",
				Message: "required",
			})
		}
	}

	if err := validateRedirectURL(cfg); err != nil {
		errs = append(errs, *err)
	}

	// Validate session signing key
	if cfg.Auth.SigningKey == "" {
		errs = append(errs, ValidationError{
			Field:   "auth.signing_key",
			Message: "required",
		})
	} else if len(cfg.Auth.SigningKey) < 32 {
		errs = append(errs, ValidationError{
			Field:   "auth.signing_key",
			Message: fmt.Sprintf("must be at least 32 bytes for HS256, got %d", len(cfg.Auth.SigningKey)),
		})
	}

	// Validate rate limits
	if cfg.RateLimit.Auth.Max < 0 {
		errs = append(errs, ValidationError{
			Field:   "rate_limit.auth.max",
			Message: "must not be negative",
		})
	}
	if cfg.RateLimit.Data.Max < 0 {
		errs = append(errs, ValidationError{
			Field:   "rate_limit.data.max",
			Message: "must not be negative",
		})
	}

	// Validate log level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("must be 'debug', 'info', 'warn', or 'error', got '%s'", cfg.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateRedirectURL checks the configured redirect URL against the
// allow-list. When no allow-list is configured, only localhost redirect
// URLs are accepted so a missing list cannot silently open redirects.
func validateRedirectURL(cfg *Config) *ValidationError {
	redirect := cfg.Auth.Provider.RedirectURL
	if redirect == "" {
		if cfg.DevMode {
			return nil
		}
		return &ValidationError{
			Field:   "auth.provider.redirect_url",
			Message: "required",
		}
	}

	u, err := url.Parse(redirect)
	if err != nil {
		return &ValidationError{
			Field:   "auth.provider.redirect_url",
			Message: fmt.Sprintf("invalid URL: %v", err),
		}
	}

	if len(cfg.Auth.AllowedRedirectURLs) == 0 {
		if !isLocalhost(u) {
			return &ValidationError{
				Field:   "auth.provider.redirect_url",
				Message: "no allow-list configured; only localhost redirect URLs are accepted",
			}
		}
		return nil
	}

	for _, allowed := range cfg.Auth.AllowedRedirectURLs {
		if redirect == allowed {
			return nil
		}
	}
	return &ValidationError{
		Field:   "auth.provider.redirect_url",
		Message: "not in auth.allowed_redirect_urls",
	}
}

func isLocalhost(u *url.URL) bool {
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}
