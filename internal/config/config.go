// Package config implements layered configuration for the contextmcp
// server: code defaults < TOML config file < environment variables
// (highest precedence), exactly as the teacher MCP server layers its own
// config (spec.md §6.3, SPEC_FULL.md Ambient Stack).
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the contextmcp server.
type Config struct {
	Storage     StorageConfig     `toml:"storage"`
	Server      ServerConfig      `toml:"server"`
	Transport   TransportConfig   `toml:"transport"`
	Log         LogConfig         `toml:"log"`
	Vision      VisionConfig      `toml:"vision"`
	Performance PerformanceConfig `toml:"performance"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

// StorageConfig selects and configures the repository backing (spec.md §6.2).
type StorageConfig struct {
	// Driver is "memory" (default) or "postgres".
	Driver string `toml:"driver"`
	// DSN is the postgres connection string; required when Driver == "postgres".
	DSN string `toml:"dsn"`
}

// ServerConfig holds MCP server metadata.
type ServerConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// TransportConfig holds transport-related settings.
type TransportConfig struct {
	// Mode selects the transport: "stdio" (default) or "http".
	Mode string `toml:"mode"`
	// Port is the HTTP listen port (default: 8787). Only used when Mode is "http".
	Port string `toml:"port"`
	// Host is the HTTP listen address (default: "0.0.0.0"). Only used when Mode is "http".
	Host string `toml:"host"`
	// CORSOrigins is a comma-separated list of allowed CORS origins (default: "*").
	CORSOrigins string `toml:"cors_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// VisionConfig gates the "vision" workflow-guidance surface supplemented
// from original_source/ (SPEC_FULL.md "Vision/workflow feature flags").
// Disabling any of these must preserve functional correctness of the core
// operations (spec.md §4.8) — they only gate enrichment, not persistence.
type VisionConfig struct {
	Enabled            bool                     `toml:"enabled"`
	ContextEnforcement ContextEnforcementConfig `toml:"context_enforcement"`
	ProgressTracking   ProgressTrackingConfig   `toml:"progress_tracking"`
	WorkflowHints      WorkflowHintsConfig      `toml:"workflow_hints"`
	Enrichment         EnrichmentConfig         `toml:"enrichment"`
}

type ContextEnforcementConfig struct {
	Enabled                  bool `toml:"enabled"`
	RequireCompletionSummary bool `toml:"require_completion_summary"`
	MinSummaryLength         int  `toml:"min_summary_length"`
}

type ProgressTrackingConfig struct {
	Enabled bool `toml:"enabled"`
}

type WorkflowHintsConfig struct {
	Enabled  bool `toml:"enabled"`
	MaxHints int  `toml:"max_hints"`
}

type EnrichmentConfig struct {
	Enabled bool `toml:"enabled"`
}

// PerformanceConfig holds the cache and overhead-budget knobs of spec.md §6.3.
type PerformanceConfig struct {
	Cache          CacheConfig          `toml:"cache"`
	OverheadLimits OverheadLimitsConfig `toml:"overhead_limits"`
}

type CacheConfig struct {
	TTLSeconds int  `toml:"ttl_seconds"`
	Enabled    bool `toml:"enabled"`
}

type OverheadLimitsConfig struct {
	MaxEnrichmentMS int  `toml:"max_enrichment_ms"`
	FailGracefully  bool `toml:"fail_gracefully"`
}

// MaintenanceConfig gates the periodic advisory scan (agent workload /
// delegation backlog), the adapted scheduler+janitor idiom from the teacher.
type MaintenanceConfig struct {
	Enabled       bool `toml:"enabled"`
	IntervalHours int  `toml:"interval_hours"`
}

// Load creates a Config by reading from a TOML config file and environment
// variables. Precedence: environment variables > config file > defaults.
//
// Config file search order (first found wins):
//  1. Path passed via the configPath parameter
//  2. CONTEXTMCP_CONFIG environment variable
//  3. ./contextmcp.toml (current directory)
//  4. ~/.config/contextmcp/contextmcp.toml (XDG-style)
//
// All fields are optional in the config file. Environment variables always
// override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{Driver: "memory"},
		Server: ServerConfig{
			Name:    "contextmcp",
			Version: "0.1.0",
		},
		Transport: TransportConfig{
			Mode:        "stdio",
			Port:        "8787",
			Host:        "0.0.0.0",
			CORSOrigins: "*",
		},
		Log: LogConfig{Level: "info"},
		Vision: VisionConfig{
			Enabled: true,
			ContextEnforcement: ContextEnforcementConfig{
				Enabled:                  true,
				RequireCompletionSummary: true,
				MinSummaryLength:         1,
			},
			ProgressTracking: ProgressTrackingConfig{Enabled: true},
			WorkflowHints:    WorkflowHintsConfig{Enabled: true, MaxHints: 5},
			Enrichment:       EnrichmentConfig{Enabled: true},
		},
		Performance: PerformanceConfig{
			Cache:          CacheConfig{TTLSeconds: 300, Enabled: true},
			OverheadLimits: OverheadLimitsConfig{MaxEnrichmentMS: 50, FailGracefully: true},
		},
		Maintenance: MaintenanceConfig{Enabled: false, IntervalHours: 1},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile finds and parses the TOML config file. If no file is found,
// this is a no-op (config file is optional).
func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil // no config file found; rely on defaults + env
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	return nil
}

// resolveConfigPath determines which config file to use. Returns empty string
// if no config file is found (config file is optional).
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit // caller wants this file; let DecodeFile report if missing
	}

	if p := os.Getenv("CONTEXTMCP_CONFIG"); p != "" {
		return p
	}

	if _, err := os.Stat("contextmcp.toml"); err == nil {
		return "contextmcp.toml"
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/contextmcp/contextmcp.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnv overlays environment variables on top of existing config values.
// An env var only takes effect if it is non-empty / explicitly set.
func (c *Config) applyEnv() {
	envOverride("CONTEXTMCP_STORAGE_DRIVER", &c.Storage.Driver)
	envOverride("DATABASE_URL", &c.Storage.DSN) // common convention, lowest precedence among the DSN env vars
	envOverride("CONTEXTMCP_STORAGE_DSN", &c.Storage.DSN)

	envOverride("CONTEXTMCP_TRANSPORT", &c.Transport.Mode)
	envOverride("CONTEXTMCP_PORT", &c.Transport.Port)
	envOverride("CONTEXTMCP_HOST", &c.Transport.Host)
	envOverride("CONTEXTMCP_CORS_ORIGINS", &c.Transport.CORSOrigins)

	envOverride("CONTEXTMCP_LOG_LEVEL", &c.Log.Level)

	envBoolOverride("CONTEXTMCP_VISION_ENABLED", &c.Vision.Enabled)
	envBoolOverride("CONTEXTMCP_VISION_CONTEXT_ENFORCEMENT_ENABLED", &c.Vision.ContextEnforcement.Enabled)
	envBoolOverride("CONTEXTMCP_VISION_WORKFLOW_HINTS_ENABLED", &c.Vision.WorkflowHints.Enabled)
	envBoolOverride("CONTEXTMCP_VISION_ENRICHMENT_ENABLED", &c.Vision.Enrichment.Enabled)

	envBoolOverride("CONTEXTMCP_CACHE_ENABLED", &c.Performance.Cache.Enabled)
	envIntOverride("CONTEXTMCP_CACHE_TTL_SECONDS", &c.Performance.Cache.TTLSeconds)

	envBoolOverride("CONTEXTMCP_MAINTENANCE_ENABLED", &c.Maintenance.Enabled)
	envIntOverride("CONTEXTMCP_MAINTENANCE_INTERVAL_HOURS", &c.Maintenance.IntervalHours)
}

// Validate checks that required fields are present and consistent.
func (c *Config) Validate() error {
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport mode: %q (must be \"stdio\" or \"http\")", c.Transport.Mode)
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required when storage.driver is \"postgres\": set storage.dsn in config file, or CONTEXTMCP_STORAGE_DSN/DATABASE_URL env var")
		}
	default:
		return fmt.Errorf("invalid storage driver: %q (must be \"memory\" or \"postgres\")", c.Storage.Driver)
	}

	return nil
}

func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBoolOverride(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func envIntOverride(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			*dst = n
		}
	}
}
