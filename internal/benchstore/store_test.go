package benchstore

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpenCreatesDatabase(t *testing.T) {
	_, path := openTemp(t)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestSaveAssignsID(t *testing.T) {
	s, _ := openTemp(t)
	r := &Run{Op: "add", Workers: 2, TotalOps: 10}
	require.NoError(t, s.Save(context.Background(), r))

	_, err := uuid.Parse(r.ID)
	assert.NoError(t, err)
	assert.False(t, r.StartedAt.IsZero())

	assert.Error(t, s.Save(context.Background(), r), "duplicate id")
}

func TestListNewestFirst(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	runs := []*Run{
		{Op: "add", Workers: 1, TotalOps: 100, Elapsed: time.Second, OpsPerSecond: 100, LatencyMs: 10, StartedAt: base},
		{Op: "greet", Workers: 4, TotalOps: 400, Elapsed: 2 * time.Second, OpsPerSecond: 200, LatencyMs: 5, StartedAt: base.Add(time.Minute)},
		{Op: "add", Workers: 8, TotalOps: 800, Errors: 3, Elapsed: time.Second, OpsPerSecond: 800, LatencyMs: 1.25, StartedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		require.NoError(t, s.Save(ctx, r))
	}

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, runs[2].ID, all[0].ID)
	assert.Equal(t, runs[0].ID, all[2].ID)

	adds, err := s.List(ctx, "add", 0)
	require.NoError(t, err)
	require.Len(t, adds, 2)
	got := adds[0]
	assert.Equal(t, "add", got.Op)
	assert.Equal(t, 8, got.Workers)
	assert.Equal(t, int64(800), got.TotalOps)
	assert.Equal(t, int64(3), got.Errors)
	assert.Equal(t, time.Second, got.Elapsed)
	assert.Equal(t, 1.25, got.LatencyMs)
	assert.True(t, base.Add(2*time.Minute).Equal(got.StartedAt))

	limited, err := s.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOpenMigratesRunsWithoutErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE runs (
		id TEXT PRIMARY KEY, op TEXT NOT NULL, workers INTEGER NOT NULL,
		total_ops INTEGER NOT NULL, elapsed_ns INTEGER NOT NULL,
		ops_per_second REAL NOT NULL, latency_ms REAL NOT NULL, started_at INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO runs VALUES ('old', 'add', 1, 10, 1000, 10, 0.1, 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &Run{Op: "add", Workers: 2, TotalOps: 20, Errors: 4, StartedAt: time.Unix(2, 0)}))

	runs, err := s.List(ctx, "add", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(4), runs[0].Errors)
	assert.Equal(t, "old", runs[1].ID)
	assert.Equal(t, int64(0), runs[1].Errors)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}
