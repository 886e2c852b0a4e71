package discovery

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type pyproject struct {
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name string `toml:"name"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

// ProjectName reads the project name from pyproject.toml, falling back to
// the base name of root when the file is absent, unreadable or unnamed.
func ProjectName(root string) string {
	fallback := filepath.Base(root)
	if abs, err := filepath.Abs(root); err == nil {
		fallback = filepath.Base(abs)
	}

	if !PyprojectExists(root) {
		return fallback
	}
	data, err := os.ReadFile(filepath.Join(root, pyprojectFile))
	if err != nil {
		return fallback
	}

	var meta pyproject
	if _, err := toml.Decode(string(data), &meta); err != nil {
		return fallback
	}
	if name := strings.TrimSpace(meta.Project.Name); name != "" {
		return name
	}
	if name := strings.TrimSpace(meta.Tool.Poetry.Name); name != "" {
		return name
	}
	return fallback
}
