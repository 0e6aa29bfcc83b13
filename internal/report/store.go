package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Entry is one archived analysis run.
type Entry struct {
	ID              string
	Timestamp       time.Time
	Model           string
	TaskCount       int
	ToolCallCount   int
	DurationSeconds float64
	Format          string
	OutputPath      string
	Analysis        string
}

// Store is an append-only SQLite archive of analysis runs. Safe for
// concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore opens the history database at the given path. The schema is
// created automatically on first use.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id                TEXT PRIMARY KEY,
		timestamp         TEXT NOT NULL,
		model             TEXT NOT NULL,
		task_count        INTEGER NOT NULL,
		tool_call_count   INTEGER NOT NULL,
		duration_seconds  REAL NOT NULL,
		format            TEXT NOT NULL,
		output_path       TEXT,
		analysis          TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON analysis_runs(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Archive persists one analysis run. A UUIDv7 id is generated for the
// row; outputPath may be empty when the report went to stdout only.
func (s *Store) Archive(ctx context.Context, r *Report, format Format, outputPath string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run ID: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analysis_runs
			(id, timestamp, model, task_count, tool_call_count, duration_seconds, format, output_path, analysis)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(),
		r.Timestamp.UTC().Format(time.RFC3339),
		r.Model,
		r.TaskCount,
		r.Metadata.ToolCallCount,
		r.Metadata.DurationSeconds,
		format.String(),
		outputPath,
		r.Analysis,
	)
	if err != nil {
		return "", fmt.Errorf("insert analysis run: %w", err)
	}
	return id.String(), nil
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, model, task_count, tool_call_count, duration_seconds, format, COALESCE(output_path, ''), analysis
		 FROM analysis_runs
		 ORDER BY timestamp DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query analysis runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Model, &e.TaskCount, &e.ToolCallCount,
			&e.DurationSeconds, &e.Format, &e.OutputPath, &e.Analysis); err != nil {
			return nil, fmt.Errorf("scan analysis run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			e.Timestamp = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
