// Package discovery walks a Python project and builds the module catalog
// the cycle detector consumes.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gobwas/glob"
	lru "github.com/hashicorp/golang-lru/v2"

	"marui/internal/catalog"
	"marui/internal/errors"
	"marui/internal/observability"
	"marui/internal/parser"
)

type Options struct {
	Extractor    parser.Extractor
	ExcludeDirs  []string
	ExcludeFiles []string
	// RequireInit restricts descent to directories holding __init__.py.
	RequireInit bool
	// CacheSize bounds the parsed-imports cache; zero disables it.
	CacheSize int
}

type Stats struct {
	Files      int
	Packages   int
	Skipped    int
	CacheHits  int
	Duplicates int
}

type Result struct {
	Catalog *catalog.Catalog
	Files   []string
	Stats   Stats
}

type cacheKey struct {
	path    string
	size    int64
	modTime int64
}

type Scanner struct {
	root         string
	extractor    parser.Extractor
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	requireInit  bool
	cache        *lru.Cache[cacheKey, []string]
}

func NewScanner(root string, opts Options) (*Scanner, error) {
	s := &Scanner{
		root:        filepath.Clean(root),
		extractor:   opts.Extractor,
		requireInit: opts.RequireInit,
	}
	if s.extractor == nil {
		s.extractor = &parser.LexicalExtractor{}
	}

	var err error
	if s.excludeDirs, err = compileGlobs(opts.ExcludeDirs, "exclude.dirs"); err != nil {
		return nil, err
	}
	if s.excludeFiles, err = compileGlobs(opts.ExcludeFiles, "exclude.files"); err != nil {
		return nil, err
	}

	if opts.CacheSize > 0 {
		s.cache, err = lru.New[cacheKey, []string](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create import cache: %w", err)
		}
	}

	return s, nil
}

// Discover walks the project and returns a catalog with one module per
// Python file. Symlinked directories are not followed. Unreadable files and
// subdirectories are logged and skipped; only a missing or invalid root is
// an error.
func (s *Scanner) Discover(ctx context.Context) (*Result, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.CodeNotFound, "project root not found").
				WithContext(errors.CtxPath, s.root)
		}
		return nil, errors.Wrap(err, errors.CodePermissionDenied, "stat project root").
			WithContext(errors.CtxPath, s.root)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.CodeValidationError, "project root is not a directory").
			WithContext(errors.CtxPath, s.root)
	}
	if !PyprojectExists(s.root) {
		slog.Debug("no pyproject.toml at project root", "path", s.root)
	}

	res := &Result{}
	c, err := s.buildTree(ctx, s.root, res)
	if err != nil {
		return nil, err
	}
	res.Catalog = c

	for _, name := range c.Duplicates() {
		slog.Warn("duplicate module name", "module", name)
		res.Stats.Duplicates++
	}

	return res, nil
}

func (s *Scanner) buildTree(ctx context.Context, dir string, res *Result) (*catalog.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if dir == s.root {
			return nil, errors.Wrap(err, errors.CodePermissionDenied, "read project root").
				WithContext(errors.CtxPath, dir)
		}
		slog.Warn("failed to read directory", "path", dir, "error", err)
		res.Stats.Skipped++
		return catalog.New(), nil
	}

	c := catalog.New()
	for _, entry := range entries {
		name := entry.Name()
		if IsHidden(name) {
			continue
		}
		path := filepath.Join(dir, name)

		if entry.IsDir() {
			if matchAny(s.excludeDirs, name) {
				continue
			}
			if s.requireInit && !InitFileExists(path) {
				continue
			}
			sub, err := s.buildTree(ctx, path, res)
			if err != nil {
				return nil, err
			}
			res.Stats.Packages++
			c.Merge(sub)
			continue
		}

		if !IsPythonFile(path) || matchAny(s.excludeFiles, name) {
			continue
		}

		imports, err := s.imports(path, res)
		if err != nil {
			slog.Warn("failed to extract imports", "path", path, "error", err)
			res.Stats.Skipped++
			continue
		}
		id, err := ModuleID(path, s.root)
		if err != nil {
			slog.Warn("failed to derive module name", "path", path, "error", err)
			res.Stats.Skipped++
			continue
		}

		c.Append(id, imports)
		res.Files = append(res.Files, path)
		res.Stats.Files++
	}

	return c, nil
}

func (s *Scanner) imports(path string, res *Result) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := cacheKey{path: path, size: info.Size(), modTime: info.ModTime().UnixNano()}

	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			res.Stats.CacheHits++
			observability.ParseCacheHitsTotal.Inc()
			return slices.Clone(cached), nil
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mode := parser.ModeOf(s.extractor)
	start := time.Now()
	imports, err := s.extractor.Extract(path, content)
	if err != nil {
		return nil, err
	}
	observability.ParsingDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	observability.FilesParsedTotal.WithLabelValues(mode).Inc()

	if s.cache != nil {
		s.cache.Add(key, slices.Clone(imports))
	}
	return imports, nil
}

func compileGlobs(patterns []string, field string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidationError, fmt.Sprintf("invalid pattern %q", p)).
				WithContext(errors.CtxField, field)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}
