// Package history records analysis runs in a SQLite database so repeated
// runs can report which cycles appeared or went away.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"marui/internal/errors"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, errors.New(errors.CodeValidationError, "history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, errors.New(errors.CodeValidationError, "history path is a directory, expected file").
			WithContext(errors.CtxPath, cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, errors.CodePermissionDenied, "create history directory").
				WithContext(errors.CtxPath, dir)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun stores run and its cycles, filling in ID and Timestamp when
// they are unset.
func (s *Store) SaveRun(ctx context.Context, run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.ProjectKey = normalizeKey(run.ProjectKey)
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}

	err := s.withRetry("save run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (id, project_key, ts_utc, ts_unix_nano, commit_hash, module_count, edge_count, cycle_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.ProjectKey,
			run.Timestamp.UTC().Format(time.RFC3339Nano),
			run.Timestamp.UnixNano(),
			run.CommitHash,
			run.ModuleCount,
			run.EdgeCount,
			len(run.Cycles),
		); err != nil {
			return err
		}

		for i, chain := range run.Cycles {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_cycles (run_id, position, chain) VALUES (?, ?, ?)`,
				run.ID, i, chain,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// LatestRun returns the most recent run for projectKey, or nil when none
// has been recorded.
func (s *Store) LatestRun(ctx context.Context, projectKey string) (*Run, error) {
	runs, err := s.Runs(ctx, projectKey, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// Runs lists up to limit runs for projectKey, newest first. limit <= 0
// returns all of them.
func (s *Store) Runs(ctx context.Context, projectKey string, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT id, project_key, ts_unix_nano, commit_hash, module_count, edge_count
FROM runs
WHERE project_key = ?
ORDER BY ts_unix_nano DESC, rowid DESC`
	args := []any{normalizeKey(projectKey)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var runs []Run
	err := s.withRetry("load runs", func() error {
		runs = nil
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				run    Run
				tsNano int64
			)
			if err := rows.Scan(&run.ID, &run.ProjectKey, &tsNano, &run.CommitHash, &run.ModuleCount, &run.EdgeCount); err != nil {
				return fmt.Errorf("scan run row: %w", err)
			}
			run.Timestamp = time.Unix(0, tsNano).UTC()
			runs = append(runs, run)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	for i := range runs {
		cycles, err := s.loadCycles(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Cycles = cycles
	}
	return runs, nil
}

func (s *Store) loadCycles(ctx context.Context, runID string) ([]string, error) {
	var cycles []string
	err := s.withRetry("load cycles", func() error {
		cycles = nil
		rows, err := s.db.QueryContext(ctx,
			`SELECT chain FROM run_cycles WHERE run_id = ? ORDER BY position ASC`, runID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var chain string
			if err := rows.Scan(&chain); err != nil {
				return fmt.Errorf("scan cycle row: %w", err)
			}
			cycles = append(cycles, chain)
		}
		return rows.Err()
	})
	return cycles, err
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "default"
	}
	return key
}
