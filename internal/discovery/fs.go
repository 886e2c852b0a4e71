package discovery

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	initFile      = "__init__.py"
	pyprojectFile = "pyproject.toml"
)

// InitFileExists reports whether dir is a Python package.
func InitFileExists(dir string) bool {
	return regularFileExists(filepath.Join(dir, initFile))
}

// PyprojectExists reports whether dir is the root of a Python project.
func PyprojectExists(dir string) bool {
	return regularFileExists(filepath.Join(dir, pyprojectFile))
}

// IsPythonFile reports whether path is a .py module. Package initializers
// are not modules of their own.
func IsPythonFile(path string) bool {
	base := filepath.Base(path)
	return base != initFile && filepath.Ext(base) == ".py"
}

func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// ModuleID converts a file path into a dotted module identifier relative
// to root: root/pkg/sub/mod.py becomes pkg.sub.mod.
func ModuleID(path, root string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".py")
	return strings.ReplaceAll(rel, "/", "."), nil
}

func regularFileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
