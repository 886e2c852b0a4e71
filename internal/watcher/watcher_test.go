package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func waitFor(t *testing.T, changes <-chan []string, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case paths := <-changes:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadGlob(t *testing.T) {
	if _, err := NewWatcher(time.Second, []string{"[abc"}, nil, func([]string) {}); err == nil {
		t.Fatal("expected glob compile error")
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, []string{"exclude_dir"}, []string{"*_skip.py"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "mod.py")
	if err := os.WriteFile(testFile, []byte("import os\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, testFile, 2*time.Second)

	// Excluded and non-Python files stay quiet.
	for _, name := range []string{"notes.txt", "gen_skip.py", ".hidden.py"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	quiet := time.After(500 * time.Millisecond)
	for done := false; !done; {
		select {
		case paths := <-changedFiles:
			for _, p := range paths {
				if p != testFile {
					t.Errorf("unexpected change to %s", p)
				}
			}
		case <-quiet:
			done = true
		}
	}

	pyproject := filepath.Join(tmpDir, "pyproject.toml")
	if err := os.WriteFile(pyproject, []byte("[project]\nname = \"p\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, pyproject, 2*time.Second)

	// New directories are watched recursively after create.
	subdir := filepath.Join(tmpDir, "pkg")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "__init__.py")
	if err := os.WriteFile(subFile, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, subFile, 2*time.Second)
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.py")
	newPath := filepath.Join(tmpDir, "new.py")
	if err := os.WriteFile(oldPath, []byte("import a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, newPath, 2*time.Second)
}

func TestWatcher_RemovedPackageDir(t *testing.T) {
	tmpDir := t.TempDir()
	pkg := filepath.Join(tmpDir, "pkg")
	if err := os.MkdirAll(pkg, 0o755); err != nil {
		t.Fatal(err)
	}

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(50*time.Millisecond, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(pkg); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changedFiles, pkg, 2*time.Second)
}

func TestWatcher_RateLimitDelaysBatches(t *testing.T) {
	tmpDir := t.TempDir()

	batches := make(chan time.Time, 8)
	w, err := NewWatcher(20*time.Millisecond, nil, nil, func([]string) {
		batches <- time.Now()
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.SetRateLimit(2)

	// Drive flushes directly so filesystem timing does not matter.
	w.scheduleChange(filepath.Join(tmpDir, "a.py"))
	first := <-batches
	w.scheduleChange(filepath.Join(tmpDir, "b.py"))

	select {
	case second := <-batches:
		if gap := second.Sub(first); gap < 300*time.Millisecond {
			t.Fatalf("second batch arrived after %v, expected the limiter to hold it", gap)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("throttled batch never delivered")
	}
}

func TestWatcher_NegativeRateRemovesCap(t *testing.T) {
	w, err := NewWatcher(20*time.Millisecond, nil, nil, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.SetRateLimit(2)
	w.SetRateLimit(-1)
	if got := w.limiter.Limit(); got != rate.Inf {
		t.Fatalf("limit = %v, want rate.Inf", got)
	}
}
