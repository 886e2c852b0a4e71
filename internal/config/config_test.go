package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"marui/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "marui.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
project_root = "./src"

[discovery]
mode = "syntax"
require_init = false
cache_size = 10

[exclude]
dirs = [".git", "build*"]
files = ["*_pb2.py"]

[watch]
debounce = "1s"
max_rescans_per_second = 5.0

[output]
dot = "graph.dot"
tsv = "deps.tsv"
mermaid = "graph.mmd"

[alerts]
beep = true
terminal = false
fail_on_cycles = true

[history]
enabled = true
path = "hist.db"

[observability]
enabled = true
address = "127.0.0.1:9000"
enable_tracing = true
otlp_endpoint = "localhost:4317"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ProjectRoot != "./src" {
		t.Errorf("Expected ProjectRoot ./src, got %s", cfg.ProjectRoot)
	}
	if cfg.Discovery.Mode != "syntax" || cfg.RequireInit() || cfg.Discovery.CacheSize != 10 {
		t.Errorf("Unexpected discovery config: %+v", cfg.Discovery)
	}
	if len(cfg.Exclude.Dirs) != 2 || cfg.Exclude.Files[0] != "*_pb2.py" {
		t.Errorf("Unexpected excludes: %+v", cfg.Exclude)
	}
	if cfg.Watch.Debounce != time.Second || cfg.Watch.MaxRescansPerSecond != 5 {
		t.Errorf("Unexpected watch config: %+v", cfg.Watch)
	}
	if cfg.Output.DOT != "graph.dot" || cfg.Output.Mermaid != "graph.mmd" {
		t.Errorf("Unexpected output config: %+v", cfg.Output)
	}
	if !cfg.Alerts.Beep || cfg.Alerts.Terminal || !cfg.Alerts.FailOnCycles {
		t.Errorf("Unexpected alerts: %+v", cfg.Alerts)
	}
	if !cfg.History.Enabled || cfg.History.Path != "hist.db" {
		t.Errorf("Unexpected history: %+v", cfg.History)
	}
	if cfg.Observability.Address != "127.0.0.1:9000" || cfg.Observability.OTLPEndpoint != "localhost:4317" {
		t.Errorf("Unexpected observability: %+v", cfg.Observability)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `project_root = "."`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Expected default debounce 500ms, got %v", cfg.Watch.Debounce)
	}
	if cfg.Discovery.Mode != "lexical" || !cfg.RequireInit() {
		t.Errorf("Unexpected discovery defaults: %+v", cfg.Discovery)
	}
	if !cfg.Alerts.Terminal {
		t.Error("Expected terminal alerts on by default")
	}
	if cfg.History.Path != DefaultHistoryPath {
		t.Errorf("Expected default history path, got %s", cfg.History.Path)
	}
	if cfg.Watch.MaxRescansPerSecond != DefaultMaxRescansPerSecond {
		t.Errorf("Expected default rescan rate, got %v", cfg.Watch.MaxRescansPerSecond)
	}
}

func TestLoadUncappedRescans(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[watch]\nmax_rescans_per_second = -1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Watch.MaxRescansPerSecond != -1 {
		t.Errorf("Expected negative rate to survive defaults, got %v", cfg.Watch.MaxRescansPerSecond)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Negative rescan rate means uncapped and must validate: %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ProjectRoot != "." || cfg.Discovery.CacheSize != DefaultCacheSize {
		t.Errorf("Unexpected default config: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
}

func TestLoadError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.toml"))
	if !errors.IsCode(err, errors.CodeNotFound) {
		t.Errorf("Expected NOT_FOUND for missing file, got %v", err)
	}

	_, err = Load(writeConfig(t, "bad = toml = format"))
	if !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("Expected VALIDATION_ERROR for malformed TOML, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Discovery.Mode = "regex" }},
		{"bad dir glob", func(c *Config) { c.Exclude.Dirs = []string{"[abc"} }},
		{"bad file glob", func(c *Config) { c.Exclude.Files = []string{"[abc"} }},
		{"zero debounce", func(c *Config) { c.Watch.Debounce = 0 }},
		{"negative cache", func(c *Config) { c.Discovery.CacheSize = -1 }},
		{"history without path", func(c *Config) { c.History.Enabled = true; c.History.Path = " " }},
		{"metrics without address", func(c *Config) { c.Observability.Enabled = true; c.Observability.Address = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.IsCode(err, errors.CodeValidationError) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("MARUI_PROJECT_ROOT", "/srv/app")
	t.Setenv("MARUI_DISCOVERY_MODE", "syntax")
	t.Setenv("MARUI_DISCOVERY_REQUIRE_INIT", "false")
	t.Setenv("MARUI_WATCH_DEBOUNCE", "2s")
	t.Setenv("MARUI_HISTORY_ENABLED", "true")
	t.Setenv("MARUI_OBSERVABILITY_ADDRESS", ":9999")
	t.Setenv("MARUI_DISCOVERY_CACHE_SIZE", "not-a-number")

	cfg := Default()
	ApplyEnvOverrides(cfg)

	if cfg.ProjectRoot != "/srv/app" {
		t.Errorf("Expected project root override, got %s", cfg.ProjectRoot)
	}
	if cfg.Discovery.Mode != "syntax" || cfg.RequireInit() {
		t.Errorf("Unexpected discovery overrides: %+v", cfg.Discovery)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("Expected debounce 2s, got %v", cfg.Watch.Debounce)
	}
	if !cfg.History.Enabled {
		t.Error("Expected history enabled")
	}
	if cfg.Observability.Address != ":9999" {
		t.Errorf("Expected address :9999, got %s", cfg.Observability.Address)
	}
	if cfg.Discovery.CacheSize != DefaultCacheSize {
		t.Errorf("Invalid int override must be ignored, got %d", cfg.Discovery.CacheSize)
	}
}
