package run

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout sorts lexicographically in the same order as time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Compile-time check that SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepository stores runs in a SQLite database file.
type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteRepository opens (or creates) the database at dbPath, applies the
// embedded migrations and marks runs left RUNNING by a previous process as
// FAILED.
func NewSQLiteRepository(dbPath string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	repo := &SQLiteRepository{db: db, logger: logger}

	if err := repo.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if err := repo.markInterrupted(); err != nil {
		logger.Warn("failed to mark interrupted runs", "error", err)
	}

	return repo, nil
}

// Close closes the underlying database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}

		name := m.Name()
		if r.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		if _, err := r.db.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}

		if _, err := r.db.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}

		r.logger.Info("applied migration", "name", name)
	}

	return nil
}

func (r *SQLiteRepository) isMigrationApplied(name string) bool {
	var exists int
	err := r.db.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}

	var applied int
	err = r.db.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

func (r *SQLiteRepository) markInterrupted() error {
	now := formatTime(time.Now())
	_, err := r.db.ExecContext(context.Background(),
		`UPDATE runs SET status = ?, error = 'interrupted by restart', error_code = 'INTERRUPTED', updated_at = ?, completed_at = ?
		 WHERE status IN (?, ?)`,
		StatusFailed, now, now, StatusRunning, StatusInQueue)
	return err
}

// Save inserts the run or replaces the stored row with the same ID.
func (r *SQLiteRepository) Save(ctx context.Context, run *Run) error {
	snap := run.Clone()

	parts, err := json.Marshal(snap.Parts)
	if err != nil {
		return fmt.Errorf("encode parts: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO runs (id, status, input_name, input_path, segment_duration, overlap_duration,
			total_duration, parts, error, error_code, created_at, updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			input_name = excluded.input_name,
			input_path = excluded.input_path,
			segment_duration = excluded.segment_duration,
			overlap_duration = excluded.overlap_duration,
			total_duration = excluded.total_duration,
			parts = excluded.parts,
			error = excluded.error,
			error_code = excluded.error_code,
			updated_at = excluded.updated_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, snap.ID, string(snap.Status), snap.InputName, snap.InputPath, snap.SegmentDuration, snap.OverlapDuration,
		snap.TotalDuration, string(parts), snap.Error, snap.ErrorCode,
		formatTime(snap.CreatedAt), formatTime(snap.UpdatedAt), formatTime(snap.StartedAt), formatTime(snap.CompletedAt))
	if err != nil {
		return fmt.Errorf("save run %s: %w", snap.ID, err)
	}
	return nil
}

const selectRun = `
	SELECT id, status, input_name, input_path, segment_duration, overlap_duration,
		total_duration, parts, error, error_code, created_at, updated_at, started_at, completed_at
	FROM runs`

// FindByID returns the run with the given ID or ErrRunNotFound.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, selectRun+" WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find run %s: %w", id, err)
	}
	return run, nil
}

// List returns runs newest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]*Run, error) {
	query := selectRun + " ORDER BY created_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run                                      Run
		status, parts                            string
		createdAt, updatedAt, startedAt, doneAt string
	)

	err := row.Scan(&run.ID, &status, &run.InputName, &run.InputPath, &run.SegmentDuration, &run.OverlapDuration,
		&run.TotalDuration, &parts, &run.Error, &run.ErrorCode, &createdAt, &updatedAt, &startedAt, &doneAt)
	if err != nil {
		return nil, err
	}

	run.Status = Status(status)
	if err := json.Unmarshal([]byte(parts), &run.Parts); err != nil {
		return nil, fmt.Errorf("decode parts of %s: %w", run.ID, err)
	}
	if run.Parts == nil {
		run.Parts = make([]Part, 0)
	}
	run.CreatedAt = parseTime(createdAt)
	run.UpdatedAt = parseTime(updatedAt)
	run.StartedAt = parseTime(startedAt)
	run.CompletedAt = parseTime(doneAt)

	return &run, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeLayout, s)
	return t
}
