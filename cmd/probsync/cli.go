package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/probsync/probsync/internal/help"
	"github.com/probsync/probsync/internal/schema"
)

// cliOptions holds parsed CLI options.
type cliOptions struct {
	configPath   string
	devMode      bool
	showVersion  bool
	showHelp     bool
	genSchema    bool
	schemaOutput string
}

// parseFlags parses CLI flags and returns options.
func parseFlags() *cliOptions {
	opts := &cliOptions{}

	flag.StringVar(&opts.configPath, "config", getEnv("PROBSYNC_CONFIG", "/etc/probsync/config.yaml"), "Path to configuration file")
	flag.BoolVar(&opts.devMode, "dev", false, "Enable development mode (mock identity provider, in-memory store)")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.BoolVar(&opts.showHelp, "help", false, "Show extended help")
	flag.BoolVar(&opts.genSchema, "schema", false, "Generate JSON schema and exit")
	flag.StringVar(&opts.schemaOutput, "schema-output", "", "Output file for schema (default: stdout)")
	flag.Parse()

	return opts
}

// handleInfoCommands handles --version, --help, --schema flags.
// Returns true if command was handled and program should exit.
func handleInfoCommands(opts *cliOptions) bool {
	helpGen := help.NewGenerator(help.AppInfo{
		Name:        "probsync",
		Description: "Authenticated per-user document sync service",
		Version:     Version,
		BuildTime:   BuildTime,
		DocsURL:     "https://github.com/probsync/probsync",
	}, "PROBSYNC")

	if opts.showVersion {
		fmt.Print(helpGen.PrintVersion())
		return true
	}

	if opts.showHelp {
		fmt.Print(helpGen.PrintExtendedHelp())
		return true
	}

	if opts.genSchema {
		handleSchemaGeneration(opts.schemaOutput)
		return true
	}

	return false
}

// handleSchemaGeneration generates JSON schema and exits.
func handleSchemaGeneration(outputPath string) {
	gen := schema.NewGenerator()
	data, err := gen.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate schema: %v\n", err)
		os.Exit(1)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Schema written to %s\n", outputPath)
	} else {
		fmt.Println(string(data))
	}
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvironment returns the environment name based on config dev mode.
func getEnvironment(devMode bool) string {
	if devMode {
		return "development"
	}
	return "production"
}
