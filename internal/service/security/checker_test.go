package security

import (
	"strings"
	"testing"

	"github.com/probsync/probsync/internal/config"
)

func productionConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			SigningKey:          strings.Repeat("k", 32),
			AllowedRedirectURLs: []string{"https://sync.example.com/api/auth"},
		},
		Session: config.SessionConfig{Secure: true},
		KV: config.KVConfig{
			Type:  "redis",
			Redis: config.RedisConfig{Password: "secret"},
		},
		RateLimit: config.RateLimitConfig{
			Auth: config.WindowConfig{Max: 10},
			Data: config.WindowConfig{Max: 30},
		},
	}
}

func codes(warnings []Warning) []string {
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.Code
	}
	return out
}

func hasCode(warnings []Warning, code string) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func TestChecker_CleanConfig(t *testing.T) {
	checker := NewChecker(productionConfig())
	if warnings := checker.Check(); len(warnings) != 0 {
		t.Errorf("Check() = %v, want no warnings", codes(warnings))
	}
}

func TestChecker_DevMode(t *testing.T) {
	cfg := productionConfig()
	cfg.DevMode = true
	checker := NewChecker(cfg)

	warnings := checker.Check()
	if !hasCode(warnings, "SEC-001") {
		t.Errorf("Check() = %v, want SEC-001", codes(warnings))
	}
	if !checker.HasCritical() {
		t.Error("HasCritical() = false, want true")
	}
}

func TestChecker_InsecureCookie(t *testing.T) {
	cfg := productionConfig()
	cfg.Session.Secure = false

	if warnings := NewChecker(cfg).Check(); !hasCode(warnings, "SEC-002") {
		t.Errorf("Check() = %v, want SEC-002", codes(warnings))
	}

	// Dev mode suppresses the cookie warning.
	cfg.DevMode = true
	if warnings := NewChecker(cfg).Check(); hasCode(warnings, "SEC-002") {
		t.Errorf("Check() = %v, SEC-002 not expected in dev mode", codes(warnings))
	}
}

func TestChecker_WeakSigningKey(t *testing.T) {
	cfg := productionConfig()
	cfg.Auth.SigningKey = "short"

	if warnings := NewChecker(cfg).Check(); !hasCode(warnings, "SEC-003") {
		t.Errorf("Check() = %v, want SEC-003", codes(warnings))
	}
}

func TestChecker_MissingAllowList(t *testing.T) {
	cfg := productionConfig()
	cfg.Auth.AllowedRedirectURLs = nil

	if warnings := NewChecker(cfg).Check(); !hasCode(warnings, "SEC-004") {
		t.Errorf("Check() = %v, want SEC-004", codes(warnings))
	}
}

func TestChecker_RateLimitDisabled(t *testing.T) {
	cfg := productionConfig()
	cfg.RateLimit.Data.Max = 0

	if warnings := NewChecker(cfg).Check(); !hasCode(warnings, "SEC-005") {
		t.Errorf("Check() = %v, want SEC-005", codes(warnings))
	}
}

func TestChecker_MemoryStoreInProduction(t *testing.T) {
	cfg := productionConfig()
	cfg.KV.Type = "memory"

	if warnings := NewChecker(cfg).Check(); !hasCode(warnings, "SEC-006") {
		t.Errorf("Check() = %v, want SEC-006", codes(warnings))
	}
}

func TestChecker_RedisWithoutPassword(t *testing.T) {
	cfg := productionConfig()
	cfg.KV.Redis.Password = ""

	warnings := NewChecker(cfg).Check()
	if !hasCode(warnings, "SEC-007") {
		t.Errorf("Check() = %v, want SEC-007", codes(warnings))
	}
	if got := GetBySeverity(warnings, SeverityLow); len(got) != 1 {
		t.Errorf("GetBySeverity(low) = %v, want one warning", codes(got))
	}
}

func TestFormatSummary(t *testing.T) {
	if got := FormatSummary(nil); got != "No security warnings found" {
		t.Errorf("FormatSummary(nil) = %q", got)
	}

	warnings := []Warning{
		{Code: "A", Severity: SeverityCritical},
		{Code: "B", Severity: SeverityHigh},
		{Code: "C", Severity: SeverityHigh},
	}
	want := "Security warnings: 1 critical, 2 high, 0 medium, 0 low"
	if got := FormatSummary(warnings); got != want {
		t.Errorf("FormatSummary() = %q, want %q", got, want)
	}
}

func TestCountBySeverity(t *testing.T) {
	warnings := []Warning{
		{Severity: SeverityHigh},
		{Severity: SeverityHigh},
		{Severity: SeverityLow},
	}
	counts := CountBySeverity(warnings)
	if counts[SeverityHigh] != 2 || counts[SeverityLow] != 1 {
		t.Errorf("CountBySeverity() = %v", counts)
	}
}
