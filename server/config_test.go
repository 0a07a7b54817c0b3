package server

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.MaxFileBytes() != 25*1024*1024 {
		t.Fatalf("max bytes = %d", cfg.MaxFileBytes())
	}
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verbatim.yaml")
	yml := "listen: \":9000\"\nmax_rows: 10\nlog_level: debug\nmcp:\n  enabled: false\nrate_limit:\n  trust_proxy: true\n"
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":9000" || cfg.MaxRows != 10 || cfg.MCP.Enabled || !cfg.RateLimit.TrustProxy {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.DBPath != "verbatim.db" || cfg.MaxFileMB != 25 || cfg.RateLimit.UploadsPerMinute != 30 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if lvl, _ := cfg.Level(); lvl != slog.LevelDebug {
		t.Fatalf("level = %v", lvl)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte("db_path: /tmp/from-env.db\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigEnv, path)

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/tmp/from-env.db" {
		t.Fatalf("db_path = %q", cfg.DBPath)
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":8090" {
		t.Fatalf("listen = %q", cfg.Listen)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("listen: [unclosed"), 0644)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no listen", func(c *Config) { c.Listen = "" }},
		{"no db", func(c *Config) { c.DBPath = "" }},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }},
		{"zero file size", func(c *Config) { c.MaxFileMB = 0 }},
		{"zero rows", func(c *Config) { c.MaxRows = 0 }},
		{"negative rate", func(c *Config) { c.RateLimit.UploadsPerMinute = -1 }},
		{"relative mcp path", func(c *Config) { c.MCP.Path = "mcp" }},
		{"no mcp root", func(c *Config) { c.MCP.Root = "" }},
		{"negative retention", func(c *Config) { c.Audit.RetentionDays = -1 }},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
