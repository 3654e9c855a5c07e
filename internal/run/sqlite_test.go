package run

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "data", "runs.db")
	repo, err := NewSQLiteRepository(dbPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, dbPath
}

func TestNewSQLiteRepository_CreatesSchema(t *testing.T) {
	repo, _ := newTestSQLite(t)

	for _, table := range []string{"runs", "_migrations"} {
		var name string
		err := repo.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s not found", table)
	}

	var journalMode string
	require.NoError(t, repo.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)
}

func TestNewSQLiteRepository_MigrationsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	first, err := NewSQLiteRepository(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteRepository(dbPath, nil)
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLiteRepository_SaveAndFind(t *testing.T) {
	repo, _ := newTestSQLite(t)
	ctx := context.Background()

	run := New()
	run.InputName = "talk.mp3"
	run.InputPath = "uploads/audio-1-2.mp3"
	run.SegmentDuration = 20
	run.OverlapDuration = 5
	require.NoError(t, repo.Save(ctx, run))

	require.NoError(t, run.Start())
	require.NoError(t, run.Complete(25, []Part{
		{Name: "part_1.mp3", DownloadPath: "/audio/download/part_1.mp3", StartTime: 0, Duration: 20},
		{Name: "part_2.mp3", DownloadPath: "/audio/download/part_2.mp3", StartTime: 15, Duration: 10},
	}))
	run.SetPartURL(1, "https://b.s3.r.amazonaws.com/runs/x/part_2.mp3")
	require.NoError(t, repo.Save(ctx, run))

	got, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "talk.mp3", got.InputName)
	assert.Equal(t, "uploads/audio-1-2.mp3", got.InputPath)
	assert.Equal(t, 20, got.SegmentDuration)
	assert.Equal(t, 5, got.OverlapDuration)
	assert.Equal(t, 25, got.TotalDuration)
	require.Len(t, got.Parts, 2)
	assert.Equal(t, 15, got.Parts[1].StartTime)
	assert.Equal(t, 10, got.Parts[1].Duration)
	assert.Equal(t, "https://b.s3.r.amazonaws.com/runs/x/part_2.mp3", got.Parts[1].URL)
	assert.True(t, got.CreatedAt.Equal(run.CreatedAt), "created_at round trip")
	assert.False(t, got.StartedAt.IsZero())
	assert.False(t, got.CompletedAt.IsZero())
}

func TestSQLiteRepository_FindByID_NotFound(t *testing.T) {
	repo, _ := newTestSQLite(t)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLiteRepository_List(t *testing.T) {
	repo, _ := newTestSQLite(t)
	ctx := context.Background()

	runs, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	base := time.Now()
	for i := 0; i < 3; i++ {
		run := NewWithID(fmt.Sprintf("run-%d", i))
		run.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Save(ctx, run))
	}

	runs, err = repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-0", runs[2].ID)
	assert.NotNil(t, runs[0].Parts)

	runs, err = repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSQLiteRepository_MarksInterruptedRuns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(dbPath, nil)
	require.NoError(t, err)

	running := New()
	require.NoError(t, running.Start())
	require.NoError(t, repo.Save(ctx, running))

	done := New()
	require.NoError(t, done.Start())
	require.NoError(t, done.Complete(10, []Part{{Name: "part_1.mp3"}}))
	require.NoError(t, repo.Save(ctx, done))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLiteRepository(dbPath, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.FindByID(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "INTERRUPTED", got.ErrorCode)
	assert.Equal(t, "interrupted by restart", got.Error)

	got, err = reopened.FindByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
}
