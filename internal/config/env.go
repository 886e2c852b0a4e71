package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: MARUI_[SECTION]_[KEY] (e.g., MARUI_HISTORY_PATH).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.ProjectRoot, "MARUI_PROJECT_ROOT")

	setEnvString(&cfg.Discovery.Mode, "MARUI_DISCOVERY_MODE")
	setEnvInt(&cfg.Discovery.CacheSize, "MARUI_DISCOVERY_CACHE_SIZE")
	if val, ok := os.LookupEnv("MARUI_DISCOVERY_REQUIRE_INIT"); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", "MARUI_DISCOVERY_REQUIRE_INIT", "value", val)
			cfg.Discovery.RequireInit = &b
		}
	}

	setEnvDuration(&cfg.Watch.Debounce, "MARUI_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.MaxRescansPerSecond, "MARUI_WATCH_MAX_RESCANS_PER_SECOND")

	setEnvString(&cfg.Output.DOT, "MARUI_OUTPUT_DOT")
	setEnvString(&cfg.Output.TSV, "MARUI_OUTPUT_TSV")
	setEnvString(&cfg.Output.Mermaid, "MARUI_OUTPUT_MERMAID")

	setEnvBool(&cfg.Alerts.FailOnCycles, "MARUI_ALERTS_FAIL_ON_CYCLES")

	setEnvBool(&cfg.History.Enabled, "MARUI_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "MARUI_HISTORY_PATH")

	setEnvBool(&cfg.Observability.Enabled, "MARUI_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "MARUI_OBSERVABILITY_ADDRESS")
	setEnvBool(&cfg.Observability.EnableTracing, "MARUI_OBSERVABILITY_ENABLE_TRACING")
	setEnvString(&cfg.Observability.OTLPEndpoint, "MARUI_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.ToLower(val)); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
