// Package config loads marui's TOML configuration.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"marui/internal/errors"
)

type Config struct {
	ProjectRoot   string        `toml:"project_root"`
	Discovery     Discovery     `toml:"discovery"`
	Exclude       Exclude       `toml:"exclude"`
	Watch         Watch         `toml:"watch"`
	Output        Output        `toml:"output"`
	Alerts        Alerts        `toml:"alerts"`
	History       History       `toml:"history"`
	Observability Observability `toml:"observability"`
}

type Discovery struct {
	Mode        string `toml:"mode"`         // "lexical" or "syntax"
	RequireInit *bool  `toml:"require_init"` // only descend into directories with __init__.py
	CacheSize   int    `toml:"cache_size"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// MaxRescansPerSecond caps watch-mode rescans. Zero selects the default
	// and a negative value removes the cap.
	MaxRescansPerSecond float64 `toml:"max_rescans_per_second"`
}

type Output struct {
	DOT     string `toml:"dot"`
	TSV     string `toml:"tsv"`
	Mermaid string `toml:"mermaid"`
}

type Alerts struct {
	Beep         bool `toml:"beep"`
	Terminal     bool `toml:"terminal"`
	FailOnCycles bool `toml:"fail_on_cycles"`
}

type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Address       string `toml:"address"`
	EnableTracing bool   `toml:"enable_tracing"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
}

const (
	DefaultDebounce            = 500 * time.Millisecond
	DefaultMaxRescansPerSecond = 2.0
	DefaultCacheSize           = 4096
	DefaultHistoryPath         = ".marui/history.db"
	DefaultMetricsAddress      = ":9464"
)

// Default is the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{
		Alerts: Alerts{Terminal: true},
	}
	applyDefaults(cfg)
	return cfg
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.CodeNotFound, "config file not found").
				WithContext(errors.CtxPath, path)
		}
		return nil, errors.Wrap(err, errors.CodePermissionDenied, "read config").
			WithContext(errors.CtxPath, path)
	}

	cfg := Config{Alerts: Alerts{Terminal: true}}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "decode config").
			WithContext(errors.CtxPath, path)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func (c *Config) RequireInit() bool {
	return c.Discovery.RequireInit == nil || *c.Discovery.RequireInit
}

func applyDefaults(cfg *Config) {
	if cfg.ProjectRoot == "" {
		cfg.ProjectRoot = "."
	}
	if cfg.Discovery.Mode == "" {
		cfg.Discovery.Mode = "lexical"
	}
	if cfg.Discovery.CacheSize == 0 {
		cfg.Discovery.CacheSize = DefaultCacheSize
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{"__pycache__", "venv", "node_modules"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}
	if cfg.Watch.MaxRescansPerSecond == 0 {
		cfg.Watch.MaxRescansPerSecond = DefaultMaxRescansPerSecond
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.Observability.Address == "" {
		cfg.Observability.Address = DefaultMetricsAddress
	}
}
