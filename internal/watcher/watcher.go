// Package watcher reports debounced batches of Python source changes under a
// project tree.
package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
	"golang.org/x/time/rate"

	"marui/internal/discovery"
	"marui/internal/observability"
)

const pyprojectName = "pyproject.toml"

type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	debounce     time.Duration
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	limiter      *rate.Limiter
	onChange     func([]string)
	callbackMu   sync.Mutex

	dirs   map[string]bool
	dirsMu sync.Mutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
	timer     *time.Timer
	closed    bool
}

func NewWatcher(debounce time.Duration, excludeDirs, excludeFiles []string, onChange func([]string)) (*Watcher, error) {
	if onChange == nil {
		return nil, os.ErrInvalid
	}

	compiledDirs, err := compileGlobs(excludeDirs)
	if err != nil {
		return nil, err
	}
	compiledFiles, err := compileGlobs(excludeFiles)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsWatcher:    fsw,
		debounce:     debounce,
		excludeDirs:  compiledDirs,
		excludeFiles: compiledFiles,
		limiter:      rate.NewLimiter(rate.Inf, 1),
		onChange:     onChange,
		dirs:         make(map[string]bool),
		pending:      make(map[string]time.Time),
	}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, g)
	}
	return compiled, nil
}

// SetRateLimit caps how many change batches per second reach the callback.
// Zero or a negative rate removes the cap.
func (w *Watcher) SetRateLimit(perSecond float64) {
	if perSecond <= 0 {
		w.limiter.SetLimit(rate.Inf)
		return
	}
	w.limiter.SetLimit(rate.Limit(perSecond))
}

func (w *Watcher) Watch(paths []string) error {
	for _, path := range paths {
		if err := w.watchRecursive(path); err != nil {
			return err
		}
	}

	go w.run()
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.shouldExcludeDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return err
		}
		w.dirsMu.Lock()
		w.dirs[path] = true
		w.dirsMu.Unlock()
		return nil
	})
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			observability.WatcherEventsTotal.Inc()
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		info, err := os.Stat(event.Name)
		if err == nil && info.IsDir() {
			if !w.shouldExcludeDir(event.Name) {
				if err := w.watchRecursive(event.Name); err != nil {
					slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
				} else {
					w.enqueueExistingFiles(event.Name)
				}
			}
			return
		}
	}

	// A removed package directory changes the catalog even though no .py
	// event may follow for its contents.
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.dirsMu.Lock()
		wasDir := w.dirs[event.Name]
		delete(w.dirs, event.Name)
		w.dirsMu.Unlock()
		if wasDir {
			w.scheduleChange(event.Name)
			return
		}
	}

	if !w.isRelevantFile(event.Name) {
		return
	}

	if event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) ||
		event.Has(fsnotify.Rename) {
		w.scheduleChange(event.Name)
	}
}

func (w *Watcher) scheduleChange(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if w.closed {
		return
	}

	w.pending[path] = time.Now()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flushChanges)
}

func (w *Watcher) flushChanges() {
	w.pendingMu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}

	r := w.limiter.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		observability.WatcherRescansThrottledTotal.Inc()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.timer = time.AfterFunc(delay, w.flushChanges)
		w.pendingMu.Unlock()
		return
	}

	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]time.Time)
	w.pendingMu.Unlock()

	sort.Strings(paths)

	w.callbackMu.Lock()
	defer w.callbackMu.Unlock()
	w.onChange(paths)
}

func (w *Watcher) shouldExcludeDir(path string) bool {
	base := filepath.Base(path)
	if discovery.IsHidden(base) {
		return true
	}
	for _, g := range w.excludeDirs {
		if g.Match(base) {
			return true
		}
	}
	return false
}

// isRelevantFile accepts Python sources (package markers included) and
// pyproject.toml, minus hidden and excluded names.
func (w *Watcher) isRelevantFile(path string) bool {
	base := filepath.Base(path)
	if discovery.IsHidden(base) {
		return false
	}
	if base != pyprojectName && !strings.HasSuffix(base, ".py") {
		return false
	}
	for _, g := range w.excludeFiles {
		if g.Match(base) {
			return false
		}
	}
	return true
}

func (w *Watcher) Close() error {
	w.pendingMu.Lock()
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	return w.fsWatcher.Close()
}

func (w *Watcher) enqueueExistingFiles(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil {
			return nil
		}
		if info.IsDir() {
			if path != root && w.shouldExcludeDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.isRelevantFile(path) {
			w.scheduleChange(path)
		}
		return nil
	})
}
