// Package history persists a per-firing audit trail in SQLite.
// It stores execution outcomes only; job definitions never touch the
// database and are not reloaded from it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const defaultBusyTimeout = 5000 // milliseconds

// Firing is one recorded firing outcome.
type Firing struct {
	ID         string    `json:"id"`
	Job        string    `json:"job"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Attempts   uint      `json:"attempts"`
	Outcome    string    `json:"outcome"`
	Status     int       `json:"status,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Store is a SQLite-backed firing history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates the schema.
//
// The database is created with WAL mode, a 5 s busy timeout, and a single
// connection (SQLite serialises writes).
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("history: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: enable WAL: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one finished firing.
func (s *Store) Record(ctx context.Context, f Firing) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO firings (id, job, started_at, finished_at, attempts, outcome, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Job,
		f.StartedAt.UTC().Format(time.RFC3339Nano),
		f.FinishedAt.UTC().Format(time.RFC3339Nano),
		f.Attempts, f.Outcome, f.Status, f.Error,
	)
	if err != nil {
		return fmt.Errorf("history: record firing %s: %w", f.ID, err)
	}
	return nil
}

// Recent returns up to limit firings, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Firing, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job, started_at, finished_at, attempts, outcome, status, error
		FROM firings
		ORDER BY started_at DESC, id
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query recent firings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanFirings(rows)
}

// Prune deletes firings older than the cutoff and reports how many rows
// were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM firings WHERE started_at < ?`,
		olderThan.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("history: prune firings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: prune firings: %w", err)
	}
	return n, nil
}

func scanFirings(rows *sql.Rows) ([]Firing, error) {
	var out []Firing
	for rows.Next() {
		var f Firing
		var started, finished string
		if err := rows.Scan(&f.ID, &f.Job, &started, &finished, &f.Attempts, &f.Outcome, &f.Status, &f.Error); err != nil {
			return nil, fmt.Errorf("history: scan firing: %w", err)
		}

		var err error
		if f.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("history: parse started_at: %w", err)
		}
		if f.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("history: parse finished_at: %w", err)
		}

		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate firings: %w", err)
	}
	return out, nil
}
