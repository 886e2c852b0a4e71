package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"marui/internal/errors"
)

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Discovery.Mode)) {
	case "lexical", "syntax":
	default:
		return invalid("discovery.mode", fmt.Sprintf("unknown parser mode %q", c.Discovery.Mode))
	}
	if c.Discovery.CacheSize < 0 {
		return invalid("discovery.cache_size", "must not be negative")
	}

	for _, p := range c.Exclude.Dirs {
		if _, err := glob.Compile(p); err != nil {
			return invalid("exclude.dirs", fmt.Sprintf("invalid pattern %q: %v", p, err))
		}
	}
	for _, p := range c.Exclude.Files {
		if _, err := glob.Compile(p); err != nil {
			return invalid("exclude.files", fmt.Sprintf("invalid pattern %q: %v", p, err))
		}
	}

	if c.Watch.Debounce <= 0 {
		return invalid("watch.debounce", "must be positive")
	}
	if c.History.Enabled && strings.TrimSpace(c.History.Path) == "" {
		return invalid("history.path", "required when history is enabled")
	}
	if c.Observability.Enabled && strings.TrimSpace(c.Observability.Address) == "" {
		return invalid("observability.address", "required when observability is enabled")
	}
	return nil
}

func invalid(field, msg string) error {
	return errors.New(errors.CodeValidationError, msg).WithContext(errors.CtxField, field)
}
