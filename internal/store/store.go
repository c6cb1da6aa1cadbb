// Package store persists the history of benchmark batch runs in SQLite so the
// console can show past invocations after a restart.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// Batch is one recorded batch invocation.
type Batch struct {
	ID         string     `json:"id"`
	NumConfigs int        `json:"num_configs"`
	Status     string     `json:"status"` // running, succeeded, failed
	ExitCode   int        `json:"exit_code"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type Store struct {
	db *sql.DB
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS batches (
	id           TEXT PRIMARY KEY,
	num_configs  INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	exit_code    INTEGER NOT NULL DEFAULT -1,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME
);
CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at);
`

// dsnWithPragmas applies WAL and busy-timeout pragmas per connection. Access
// is single-operator, but the daemon and a CLI inspection can overlap.
func dsnWithPragmas(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dsnWithPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordStart inserts a new running batch.
func (s *Store) RecordStart(id string, numConfigs int, startedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO batches (id, num_configs, status, started_at) VALUES (?, ?, 'running', ?)`,
		id, numConfigs, startedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting batch: %w", err)
	}
	return nil
}

// RecordFinish marks a batch as finished with its exit code and final status.
func (s *Store) RecordFinish(id string, exitCode int, status string, finishedAt time.Time) error {
	result, err := s.db.Exec(
		`UPDATE batches SET status = ?, exit_code = ?, finished_at = ? WHERE id = ?`,
		status, exitCode, finishedAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating batch: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating batch: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetBatch returns one batch by id.
func (s *Store) GetBatch(id string) (*Batch, error) {
	row := s.db.QueryRow(
		`SELECT id, num_configs, status, exit_code, started_at, finished_at FROM batches WHERE id = ?`, id,
	)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	return b, err
}

// ListBatches returns all recorded batches, newest first.
func (s *Store) ListBatches() ([]*Batch, error) {
	rows, err := s.db.Query(
		`SELECT id, num_configs, status, exit_code, started_at, finished_at FROM batches ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBatch(row scannable) (*Batch, error) {
	var b Batch
	var finished sql.NullTime
	if err := row.Scan(&b.ID, &b.NumConfigs, &b.Status, &b.ExitCode, &b.StartedAt, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning batch: %w", err)
	}
	if finished.Valid {
		t := finished.Time
		b.FinishedAt = &t
	}
	return &b, nil
}
