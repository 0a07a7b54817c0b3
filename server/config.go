package server

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigEnv names the environment variable pointing at the config file.
const ConfigEnv = "VERBATIM_CONFIG"

// Config holds the full service configuration.
type Config struct {
	Listen    string          `yaml:"listen"`
	DBPath    string          `yaml:"db_path"`
	LogLevel  string          `yaml:"log_level"` // debug | info | warn | error
	MaxFileMB int             `yaml:"max_file_mb"`
	MaxRows   int             `yaml:"max_rows"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	MCP       MCPConfig       `yaml:"mcp"`
	Audit     AuditConfig     `yaml:"audit"`
}

// RateLimitConfig bounds uploads per client IP. Zero disables the limit.
// TrustProxy keys clients by X-Forwarded-For; leave it off unless a reverse
// proxy sets that header.
type RateLimitConfig struct {
	UploadsPerMinute int  `yaml:"uploads_per_minute"`
	TrustProxy       bool `yaml:"trust_proxy"`
}

// MCPConfig configures the streamable MCP endpoint. File paths given to the
// tools are resolved inside Root.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Root    string `yaml:"root"`
}

// AuditConfig controls the audit trail of import operations.
type AuditConfig struct {
	Enabled       bool `yaml:"enabled"`
	RetentionDays int  `yaml:"retention_days"` // 0 keeps entries forever
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:    ":8090",
		DBPath:    "verbatim.db",
		LogLevel:  "info",
		MaxFileMB: 25,
		MaxRows:   50_000,
		RateLimit: RateLimitConfig{UploadsPerMinute: 30},
		MCP: MCPConfig{
			Enabled: true,
			Path:    "/mcp",
			Root:    "inbox",
		},
		Audit: AuditConfig{Enabled: true, RetentionDays: 90},
	}
}

// LoadConfig reads a YAML file over DefaultConfig. An empty path falls back to
// $VERBATIM_CONFIG, and to the defaults alone when that is unset too.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if c.MaxRows <= 0 {
		return fmt.Errorf("max_rows must be > 0")
	}
	if c.RateLimit.UploadsPerMinute < 0 {
		return fmt.Errorf("rate_limit.uploads_per_minute must be >= 0")
	}
	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.Path, "/") {
		return fmt.Errorf("mcp.path must start with /, got %q", c.MCP.Path)
	}
	if c.MCP.Enabled && c.MCP.Root == "" {
		return fmt.Errorf("mcp.root is required when mcp is enabled")
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must be >= 0")
	}
	return nil
}

// Level maps log_level to a slog level.
func (c *Config) Level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log_level %q (use debug, info, warn or error)", c.LogLevel)
	}
}

// MaxFileBytes returns max file size in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) * 1024 * 1024 }
