// Package help provides help text generation for probsync.
package help

import (
	"fmt"
	"strings"
)

// AppInfo contains application metadata.
type AppInfo struct {
	Name        string
	Description string
	Version     string
	BuildTime   string
	DocsURL     string
}

// Generator generates help text for the application.
type Generator struct {
	appInfo      AppInfo
	envVarPrefix string
}

// NewGenerator creates a new help generator.
func NewGenerator(appInfo AppInfo, envVarPrefix string) *Generator {
	return &Generator{
		appInfo:      appInfo,
		envVarPrefix: envVarPrefix,
	}
}

// PrintVersion prints version information.
func (g *Generator) PrintVersion() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s\n", g.appInfo.Name, g.appInfo.Version))
	sb.WriteString(fmt.Sprintf("  Build time: %s\n", g.appInfo.BuildTime))
	return sb.String()
}

// PrintUsage prints basic usage information.
func (g *Generator) PrintUsage() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Usage: %s [OPTIONS]\n\n", g.appInfo.Name))
	sb.WriteString(fmt.Sprintf("%s\n\n", g.appInfo.Description))
	sb.WriteString("Use --help for detailed configuration documentation\n")
	return sb.String()
}

// PrintExtendedHelp prints detailed help with all configuration options.
func (g *Generator) PrintExtendedHelp() string {
	var sb strings.Builder

	// Header
	sb.WriteString(g.header())
	sb.WriteString("\n")

	// Description section
	sb.WriteString("DESCRIPTION\n")
	sb.WriteString(fmt.Sprintf("    %s\n\n", g.appInfo.Description))

	// Usage section
	sb.WriteString("USAGE\n")
	sb.WriteString(fmt.Sprintf("    %s [OPTIONS]\n\n", g.appInfo.Name))

	// Options section
	sb.WriteString("OPTIONS\n")
	sb.WriteString(g.optionsSection())
	sb.WriteString("\n")

	// Separator
	sb.WriteString(g.separator())

	// Configuration section
	sb.WriteString("CONFIGURATION\n\n")
	sb.WriteString(g.configSection())
	sb.WriteString("\n")

	// Separator
	sb.WriteString(g.separator())

	// Environment variables section
	sb.WriteString("ENVIRONMENT VARIABLES\n\n")
	sb.WriteString(g.envVarsSection())
	sb.WriteString("\n")

	// Separator
	sb.WriteString(g.separator())

	// API endpoints section
	sb.WriteString("API ENDPOINTS\n\n")
	sb.WriteString(g.endpointsSection())
	sb.WriteString("\n")

	// Separator
	sb.WriteString(g.separator())

	// Examples section
	sb.WriteString("EXAMPLES\n\n")
	sb.WriteString(g.examplesSection())
	sb.WriteString("\n")

	// Separator
	sb.WriteString(g.separator())

	// Health endpoints section
	sb.WriteString("HEALTH ENDPOINTS\n\n")
	sb.WriteString("    GET /healthz              Liveness probe\n")
	sb.WriteString("    GET /readyz               Readiness probe\n")
	sb.WriteString("    GET /metrics              Prometheus metrics\n\n")

	// Separator
	sb.WriteString(g.separator())

	// Version section
	sb.WriteString("VERSION\n")
	sb.WriteString(fmt.Sprintf("    %s\n", g.appInfo.Version))
	sb.WriteString(fmt.Sprintf("    Built: %s\n\n", g.appInfo.BuildTime))

	if g.appInfo.DocsURL != "" {
		sb.WriteString("DOCUMENTATION\n")
		sb.WriteString(fmt.Sprintf("    %s\n\n", g.appInfo.DocsURL))
	}

	return sb.String()
}

// header generates the header box.
func (g *Generator) header() string {
	width := 80
	title := strings.ToUpper(g.appInfo.Name)
	subtitle := g.appInfo.Description

	if len(subtitle) > width-4 {
		subtitle = subtitle[:width-7] + "..."
	}

	var sb strings.Builder
	sb.WriteString("\n")

	// Top border
	sb.WriteString("+" + strings.Repeat("-", width-2) + "+\n")

	// Title centered
	titlePadding := (width - 2 - len(title)) / 2
	sb.WriteString("|" + strings.Repeat(" ", titlePadding) + title + strings.Repeat(" ", width-2-titlePadding-len(title)) + "|\n")

	// Subtitle centered
	subtitlePadding := (width - 2 - len(subtitle)) / 2
	sb.WriteString("|" + strings.Repeat(" ", subtitlePadding) + subtitle + strings.Repeat(" ", width-2-subtitlePadding-len(subtitle)) + "|\n")

	// Bottom border
	sb.WriteString("+" + strings.Repeat("-", width-2) + "+\n")

	return sb.String()
}

// separator generates a section separator line.
func (g *Generator) separator() string {
	return strings.Repeat("-", 80) + "\n\n"
}

// optionsSection generates the options section.
func (g *Generator) optionsSection() string {
	return `    --config <path>       Path to configuration YAML file
                          Default: /etc/probsync/config.yaml
                          Env: PROBSYNC_CONFIG

    --dev                 Enable development mode (mock auth, memory store)
    --version             Show version information
    --help, -h            Show this help message
    --schema              Generate JSON Schema and exit
    --schema-output <file> Output file for schema (default: stdout)
`
}

// configSection generates the configuration section.
func (g *Generator) configSection() string {
	return fmt.Sprintf(`    Configuration is loaded from a YAML file.

    CONFIGURATION FILE STRUCTURE
    ----------------------------
    server:               HTTP server settings (port, app root)
    auth:                 OIDC provider, signing key, redirect allow-list
    session:              Session cookie settings
    kv:                   Key-value store (memory | redis)
    rate_limit:           Sliding-window limits for auth and data routes
    observability:        Metrics, tracing
    log:                  Logging configuration
    dev_mode:             Development mode

    CONFIGURATION SOURCES (in order of priority):

    1. COMMAND LINE FLAGS
       Highest priority. Override all other configuration.

    2. ENVIRONMENT VARIABLES
       Pattern: %s_<SECTION>_<KEY>

       Examples:
         %s_SERVER_HTTP_PORT=8080
         %s_LOG_LEVEL=debug
         %s_KV_TYPE=memory

    3. CONFIGURATION FILE (YAML)
       Base configuration. Default: /etc/probsync/config.yaml

    SECRETS MANAGEMENT
    ------------------
    Use environment variables for secrets:
      OIDC_CLIENT_SECRET     OAuth2 client secret
      JWT_SIGNING_KEY        Session token signing key (32+ bytes)
      REDIS_PASSWORD         Redis password
`, g.envVarPrefix, g.envVarPrefix, g.envVarPrefix, g.envVarPrefix)
}

// envVarsSection generates the environment variables section.
func (g *Generator) envVarsSection() string {
	return fmt.Sprintf(`    Pattern: %s_<SECTION>_<KEY>

    Notes:
    - All keys are converted to UPPER_SNAKE_CASE
    - Nested keys use underscore as separator
    - Boolean values: true, false, 1, 0
    - Duration values: 10s, 5m, 1h, 100ms

    KEY ENVIRONMENT VARIABLES:
    --------------------------

    [Auth]
      OIDC_ISSUER_URL            Identity provider issuer URL
      OIDC_CLIENT_ID             OAuth2 client ID
      OIDC_CLIENT_SECRET         OAuth2 client secret
      OIDC_REDIRECT_URL          OAuth2 redirect URL
      JWT_SIGNING_KEY            Session token HMAC signing key

    [Storage]
      REDIS_PASSWORD             Redis password

    [Server]
      HTTP_PORT                  HTTP listen port

    [Logging]
      LOG_LEVEL                  Log level (debug, info, warn, error)
      DEV_MODE                   Enable development mode
`, g.envVarPrefix)
}

// endpointsSection generates the API endpoints section.
func (g *Generator) endpointsSection() string {
	return `    GET  /api/auth?action=login    Start the OAuth login flow
    GET  /api/auth?state=...       OAuth callback (completes login)
    GET  /api/auth?action=token    Return the session token as JSON
    GET  /api/auth?action=logout   Clear the session

    GET  /api/user                 Fetch the user's document
    GET  /api/user?action=csrf     Issue a single-use CSRF token
    POST /api/user                 Write the document (X-CSRF-Token required)
`
}

// examplesSection generates the examples section.
func (g *Generator) examplesSection() string {
	return fmt.Sprintf(`    # Start with config file
    %s --config /etc/probsync/config.yaml

    # Development mode
    %s --dev

    # Generate JSON schema
    %s --schema > config.schema.json

    # Environment variable overrides
    OIDC_CLIENT_SECRET=secret123 \
    LOG_LEVEL=debug \
    %s --config config.yaml

    # Docker with volume mounts
    docker run -v /path/to/config.yaml:/etc/probsync/config.yaml \
               -e OIDC_CLIENT_SECRET=secret123 \
               -p 8080:8080 \
               %s:latest
`, g.appInfo.Name, g.appInfo.Name, g.appInfo.Name, g.appInfo.Name, g.appInfo.Name)
}
