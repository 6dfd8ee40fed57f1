// Package security provides security configuration analysis and warnings.
package security

import (
	"fmt"

	"github.com/probsync/probsync/internal/config"
)

// Severity represents the severity level of a security warning.
type Severity string

const (
	// SeverityCritical indicates a critical security issue that must be fixed before production.
	SeverityCritical Severity = "critical"
	// SeverityHigh indicates a high-risk security issue.
	SeverityHigh Severity = "high"
	// SeverityMedium indicates a medium-risk security issue.
	SeverityMedium Severity = "medium"
	// SeverityLow indicates a low-risk informational issue.
	SeverityLow Severity = "low"
)

// Warning represents a security warning.
type Warning struct {
	// Code is a unique identifier for the warning (e.g., "SEC-001").
	Code string
	// Severity indicates the risk level.
	Severity Severity
	// Title is a short summary of the issue.
	Title string
	// Description provides detailed explanation of the risk.
	Description string
	// Recommendation provides guidance on how to fix the issue.
	Recommendation string
}

// Checker analyzes configuration for security issues.
type Checker struct {
	cfg *config.Config
}

// NewChecker creates a new security checker.
func NewChecker(cfg *config.Config) *Checker {
	return &Checker{cfg: cfg}
}

// Check analyzes the configuration and returns all security warnings.
func (c *Checker) Check() []Warning {
	var warnings []Warning

	warnings = append(warnings, c.checkDevMode()...)
	warnings = append(warnings, c.checkSessionSecurity()...)
	warnings = append(warnings, c.checkRedirects()...)
	warnings = append(warnings, c.checkRateLimits()...)
	warnings = append(warnings, c.checkKV()...)

	return warnings
}

// HasCritical returns true if any critical warnings exist.
func (c *Checker) HasCritical() bool {
	for _, w := range c.Check() {
		if w.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// checkDevMode warns about development mode.
func (c *Checker) checkDevMode() []Warning {
	if c.cfg.DevMode {
		return []Warning{{
			Code:           "SEC-001",
			Severity:       SeverityCritical,
			Title:          "Development mode enabled",
			Description:    "Dev mode replaces the identity provider with a mock that logs anyone in. This is a critical security risk in production.",
			Recommendation: "Set dev_mode: false in configuration or remove the DEV_MODE environment variable.",
		}}
	}
	return nil
}

// checkSessionSecurity checks session-related security settings.
func (c *Checker) checkSessionSecurity() []Warning {
	var warnings []Warning

	if !c.cfg.Session.Secure && !c.cfg.DevMode {
		warnings = append(warnings, Warning{
			Code:           "SEC-002",
			Severity:       SeverityHigh,
			Title:          "Session cookie not marked as Secure",
			Description:    "Session cookies can be transmitted over unencrypted HTTP connections, exposing them to interception.",
			Recommendation: "Set session.secure: true when serving over HTTPS in production.",
		})
	}

	if len(c.cfg.Auth.SigningKey) > 0 && len(c.cfg.Auth.SigningKey) < 32 {
		warnings = append(warnings, Warning{
			Code:           "SEC-003",
			Severity:       SeverityHigh,
			Title:          "Weak session signing key",
			Description:    "The session signing key is shorter than 32 bytes, weakening the HS256 signature.",
			Recommendation: "Use a random signing key of at least 32 bytes.",
		})
	}

	return warnings
}

// checkRedirects warns when no redirect allow-list is configured.
func (c *Checker) checkRedirects() []Warning {
	if c.cfg.DevMode {
		return nil
	}
	if len(c.cfg.Auth.AllowedRedirectURLs) == 0 {
		return []Warning{{
			Code:           "SEC-004",
			Severity:       SeverityMedium,
			Title:          "No redirect URL allow-list configured",
			Description:    "Without an explicit allow-list only localhost redirect URLs are accepted, which will break non-local deployments and signals an incomplete configuration.",
			Recommendation: "List the exact OAuth redirect URLs under auth.allowed_redirect_urls.",
		}}
	}
	return nil
}

// checkRateLimits warns about disabled abuse control.
func (c *Checker) checkRateLimits() []Warning {
	var warnings []Warning

	if c.cfg.RateLimit.Auth.Max == 0 || c.cfg.RateLimit.Data.Max == 0 {
		warnings = append(warnings, Warning{
			Code:           "SEC-005",
			Severity:       SeverityMedium,
			Title:          "Rate limiting disabled",
			Description:    "A zero request limit disables the sliding-window rate limiter, leaving the auth and data endpoints open to abusive request rates.",
			Recommendation: "Configure non-zero rate_limit.auth.max and rate_limit.data.max.",
		})
	}

	return warnings
}

// checkKV checks the shared store configuration.
func (c *Checker) checkKV() []Warning {
	var warnings []Warning

	if c.cfg.KV.Type == "memory" && !c.cfg.DevMode {
		warnings = append(warnings, Warning{
			Code:           "SEC-006",
			Severity:       SeverityHigh,
			Title:          "In-memory store in production",
			Description:    "The memory store loses all user documents, CSRF tokens and rate-limit windows on restart and cannot be shared across replicas.",
			Recommendation: "Use kv.type: redis outside of dev mode.",
		})
	}

	if c.cfg.KV.Type == "redis" && c.cfg.KV.Redis.Password == "" && !c.cfg.DevMode {
		warnings = append(warnings, Warning{
			Code:           "SEC-007",
			Severity:       SeverityLow,
			Title:          "Redis without authentication",
			Description:    "The Redis connection is not password protected. Anyone with network access to it can read user documents and forge CSRF tokens.",
			Recommendation: "Set REDIS_PASSWORD or kv.redis.password, or restrict network access to Redis.",
		})
	}

	return warnings
}

// CountBySeverity counts warnings by severity level.
func CountBySeverity(warnings []Warning) map[Severity]int {
	counts := make(map[Severity]int)
	for _, w := range warnings {
		counts[w.Severity]++
	}
	return counts
}

// GetBySeverity filters warnings by severity.
func GetBySeverity(warnings []Warning, severity Severity) []Warning {
	var filtered []Warning
	for _, w := range warnings {
		if w.Severity == severity {
			filtered = append(filtered, w)
		}
	}
	return filtered
}

// FormatSummary returns a formatted summary of warnings.
func FormatSummary(warnings []Warning) string {
	if len(warnings) == 0 {
		return "No security warnings found"
	}

	counts := CountBySeverity(warnings)
	return fmt.Sprintf("Security warnings: %d critical, %d high, %d medium, %d low",
		counts[SeverityCritical],
		counts[SeverityHigh],
		counts[SeverityMedium],
		counts[SeverityLow],
	)
}
