// Package eventdb persists analysis passes and their events in SQLite.
package eventdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linuxmatters/timestruct/internal/processor"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	sample_rate INTEGER NOT NULL,
	frames      INTEGER NOT NULL,
	smoothing   DOUBLE NOT NULL,
	max_sample  DOUBLE NOT NULL,
	event_count INTEGER NOT NULL,
	elapsed_ns  BIGINT NOT NULL,
	created_at  BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS events (
	run_id       TEXT NOT NULL,
	event_index  INTEGER NOT NULL,
	open_ms      DOUBLE NOT NULL,
	open_amp     DOUBLE NOT NULL,
	peak_ms      DOUBLE NOT NULL,
	peak_amp     DOUBLE NOT NULL,
	close_ms     DOUBLE NOT NULL,
	close_amp    DOUBLE NOT NULL,
	PRIMARY KEY (run_id, event_index),
	FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);
`

// Run is one stored analysis pass.
type Run struct {
	RunID      string
	Source     string
	SampleRate int
	Frames     int
	Smoothing  float64
	MaxSample  float64
	EventCount int
	Elapsed    time.Duration
	CreatedAt  time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases and per-connection
	// pragmas coherent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a pass and its flat records in one transaction. If RunID is
// empty a UUID is generated. The stored run is returned.
func (s *Store) SaveRun(run Run, records []processor.FlatRecord) (*Run, error) {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.EventCount = len(records)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (run_id, source, sample_rate, frames, smoothing, max_sample, event_count, elapsed_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, run.SampleRate, run.Frames, run.Smoothing,
		run.MaxSample, run.EventCount, run.Elapsed.Nanoseconds(), run.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO events (run_id, event_index, open_ms, open_amp, peak_ms, peak_amp, close_ms, close_amp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.Exec(run.RunID, r.Index,
			r.OpenDip.Ms, r.OpenDip.Amp,
			r.Peak.Ms, r.Peak.Amp,
			r.CloseDip.Ms, r.CloseDip.Amp)
		if err != nil {
			return nil, fmt.Errorf("failed to insert event %d: %w", r.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return &run, nil
}

// GetRun returns the run with the given ID, or nil if there is none.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, source, sample_rate, frames, smoothing, max_sample, event_count, elapsed_ns, created_at
		FROM runs WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs for a source, newest first. An empty
// source lists every run.
func (s *Store) ListRuns(source string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT run_id, source, sample_rate, frames, smoothing, max_sample, event_count, elapsed_ns, created_at
		FROM runs WHERE ? = '' OR source = ?
		ORDER BY created_at DESC LIMIT ?`, source, source, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Events returns the flat records of a run in event order.
func (s *Store) Events(runID string) ([]processor.FlatRecord, error) {
	rows, err := s.db.Query(`
		SELECT event_index, open_ms, open_amp, peak_ms, peak_amp, close_ms, close_amp
		FROM events WHERE run_id = ? ORDER BY event_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []processor.FlatRecord
	for rows.Next() {
		var r processor.FlatRecord
		if err := rows.Scan(&r.Index,
			&r.OpenDip.Ms, &r.OpenDip.Amp,
			&r.Peak.Ms, &r.Peak.Amp,
			&r.CloseDip.Ms, &r.CloseDip.Amp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteRun removes a run and its events.
func (s *Store) DeleteRun(runID string) error {
	if _, err := s.db.Exec(`DELETE FROM runs WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var elapsed, created int64
	err := row.Scan(&run.RunID, &run.Source, &run.SampleRate, &run.Frames,
		&run.Smoothing, &run.MaxSample, &run.EventCount, &elapsed, &created)
	if err != nil {
		return nil, err
	}
	run.Elapsed = time.Duration(elapsed)
	run.CreatedAt = time.Unix(0, created)
	return &run, nil
}
