package history

import (
	"context"
	"database/sql"
	"fmt"
)

// Each step lists the statements that move the schema from index i to
// version i+1. The applied version is kept in PRAGMA user_version.
var schemaSteps = [][]string{
	{
		`CREATE TABLE runs (
  id TEXT PRIMARY KEY,
  project_key TEXT NOT NULL,
  ts_utc TEXT NOT NULL,
  commit_hash TEXT NOT NULL DEFAULT '',
  module_count INTEGER NOT NULL,
  edge_count INTEGER NOT NULL,
  cycle_count INTEGER NOT NULL,
  created_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
)`,
		`CREATE INDEX idx_runs_project_ts ON runs(project_key, ts_utc)`,
		`CREATE TABLE run_cycles (
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  chain TEXT NOT NULL,
  PRIMARY KEY (run_id, position)
)`,
	},
	{
		`CREATE INDEX idx_run_cycles_chain ON run_cycles(chain)`,
	},
	{
		// ts_utc text does not sort chronologically below one second.
		`ALTER TABLE runs ADD COLUMN ts_unix_nano INTEGER NOT NULL DEFAULT 0`,
		`UPDATE runs SET ts_unix_nano = CAST(ROUND((julianday(ts_utc) - 2440587.5) * 86400000.0) AS INTEGER) * 1000000`,
		`DROP INDEX idx_runs_project_ts`,
		`CREATE INDEX idx_runs_project_ts ON runs(project_key, ts_unix_nano)`,
	},
}

// SchemaVersion is the version EnsureSchema migrates to.
var SchemaVersion = len(schemaSteps)

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// EnsureSchema applies every pending step, one transaction per step.
func EnsureSchema(db *sql.DB) error {
	ctx := context.Background()

	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("history schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for v := current; v < SchemaVersion; v++ {
		if err := applyStep(ctx, db, v+1, schemaSteps[v]); err != nil {
			return err
		}
	}
	return nil
}

func applyStep(ctx context.Context, db *sql.DB, version int, stmts []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema step %d: %w", version, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema step %d: %w", version, err)
		}
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("set user_version %d: %w", version, err)
	}
	return tx.Commit()
}
