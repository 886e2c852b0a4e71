package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marui/internal/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndLoadRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	first, err := s.SaveRun(ctx, Run{
		ProjectKey:  "app",
		Timestamp:   base,
		ModuleCount: 4,
		EdgeCount:   3,
		Cycles:      []string{"a -> b -> a"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = s.SaveRun(ctx, Run{
		ProjectKey:  "app",
		Timestamp:   base.Add(time.Minute),
		CommitHash:  "abc123",
		ModuleCount: 5,
		EdgeCount:   6,
		Cycles:      []string{"c -> d -> c", "a -> b -> a"},
	})
	require.NoError(t, err)

	_, err = s.SaveRun(ctx, Run{ProjectKey: "other", Timestamp: base.Add(time.Hour)})
	require.NoError(t, err)

	latest, err := s.LatestRun(ctx, "app")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "abc123", latest.CommitHash)
	assert.Equal(t, []string{"c -> d -> c", "a -> b -> a"}, latest.Cycles)
	assert.Equal(t, base.Add(time.Minute), latest.Timestamp)

	runs, err := s.Runs(ctx, "app", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, 4, runs[1].ModuleCount)
}

func TestStore_LatestRunEmpty(t *testing.T) {
	s := openTestStore(t)
	run, err := s.LatestRun(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestStore_DefaultProjectKey(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	saved, err := s.SaveRun(ctx, Run{ProjectKey: "  "})
	require.NoError(t, err)
	assert.Equal(t, "default", saved.ProjectKey)
	assert.False(t, saved.Timestamp.IsZero())

	latest, err := s.LatestRun(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, saved.ID, latest.ID)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, Run{ProjectKey: "p", Cycles: []string{"x -> x"}})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	latest, err := s.LatestRun(ctx, "p")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, []string{"x -> x"}, latest.Cycles)
}

func TestOpen_InvalidPaths(t *testing.T) {
	_, err := Open(" ")
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	dir := t.TempDir()
	_, err = Open(dir)
	assert.True(t, errors.IsCode(err, errors.CodeValidationError))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocker"), nil, 0o644))
	_, err = Open(filepath.Join(dir, "blocker", "history.db"))
	assert.Error(t, err)
}

func TestDiff(t *testing.T) {
	prev := &Run{Cycles: []string{"a -> b -> a", "c -> d -> c"}}
	curr := Run{Cycles: []string{"c -> d -> c", "e -> e"}}

	change := Diff(prev, curr)
	assert.Equal(t, []string{"e -> e"}, change.Introduced)
	assert.Equal(t, []string{"a -> b -> a"}, change.Resolved)
	assert.False(t, change.Empty())

	change = Diff(nil, curr)
	assert.Equal(t, curr.Cycles, change.Introduced)
	assert.Empty(t, change.Resolved)

	assert.True(t, Diff(&curr, curr).Empty())
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v, err := schemaVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)

	require.NoError(t, EnsureSchema(s.db))
	v, err = schemaVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)

	_, err = s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion+1))
	require.NoError(t, err)
	assert.Error(t, EnsureSchema(s.db))
}

func TestResolveCommit_NotARepo(t *testing.T) {
	assert.Equal(t, "", ResolveCommit(context.Background(), t.TempDir()))
}

func TestStore_LatestRunSubSecond(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	// RFC3339Nano text of these two instants sorts the wrong way round.
	_, err := s.SaveRun(ctx, Run{ProjectKey: "p", Timestamp: base.Add(100 * time.Millisecond), Cycles: []string{"old"}})
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, Run{ProjectKey: "p", Timestamp: base.Add(150 * time.Millisecond), Cycles: []string{"new"}})
	require.NoError(t, err)

	latest, err := s.LatestRun(ctx, "p")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, []string{"new"}, latest.Cycles)
	assert.Equal(t, base.Add(150*time.Millisecond), latest.Timestamp)

	// Identical timestamps fall back to insertion order.
	_, err = s.SaveRun(ctx, Run{ProjectKey: "p", Timestamp: base.Add(150 * time.Millisecond), Cycles: []string{"newest"}})
	require.NoError(t, err)
	latest, err = s.LatestRun(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []string{"newest"}, latest.Cycles)
}

func TestEnsureSchema_BackfillsNumericTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	db, err := sql.Open(driverName, path)
	require.NoError(t, err)
	for v := 0; v < 2; v++ {
		require.NoError(t, applyStep(ctx, db, v+1, schemaSteps[v]))
	}
	for _, row := range []struct{ id, ts string }{
		{"old", "2026-10-18T12:00:00.1Z"},
		{"new", "2026-10-18T12:00:00.15Z"},
	} {
		_, err := db.ExecContext(ctx, `
INSERT INTO runs (id, project_key, ts_utc, module_count, edge_count, cycle_count)
VALUES (?, 'p', ?, 0, 0, 0)`, row.id, row.ts)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	latest, err := s.LatestRun(ctx, "p")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "new", latest.ID)
	assert.Equal(t, time.Date(2026, 10, 18, 12, 0, 0, 150*int(time.Millisecond), time.UTC), latest.Timestamp)
}
