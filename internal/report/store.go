// Package report persists the outcome of conformance runs so matrix
// results can be inspected after the fact.
package report

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/exconform/internal/harness"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for run reports. Uses SQLite with WAL
// mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Run is one recorded conformance run for one sample.
type Run struct {
	ID        string
	Suite     string
	Sample    string
	CreatedAt time.Time
}

// Cell is one recorded matrix cell outcome.
type Cell struct {
	RunID  string
	Config harness.Config
	Pass   bool
	Error  string
}

// Open creates or opens a report database at the given path. Applies
// required pragmas and the schema automatically; safe to call on an
// existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports a single writer; keep one connection to avoid
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// RecordRun stores a run and its cell results, returning the run id.
func (s *Store) RecordRun(ctx context.Context, suite, sample string, results []harness.CellResult) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, suite, sample, created_at) VALUES (?, ?, ?, ?)`,
		id, suite, sample, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for _, res := range results {
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cells (run_id, io_errors, unknown_length, partial_reads, pass, error)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			id,
			res.Config.SimulateIOErrors,
			res.Config.SimulateUnknownLength,
			res.Config.SimulatePartialReads,
			res.Passed(),
			errText,
		)
		if err != nil {
			return "", fmt.Errorf("failed to insert cell: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, suite, sample, created_at FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Suite, &r.Sample, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run timestamp: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Cells returns the cell outcomes of a run in matrix order.
func (s *Store) Cells(ctx context.Context, runID string) ([]Cell, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, io_errors, unknown_length, partial_reads, pass, error
		 FROM cells WHERE run_id = ?
		 ORDER BY partial_reads, unknown_length, io_errors`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cells: %w", err)
	}
	defer rows.Close()

	var cells []Cell
	for rows.Next() {
		var c Cell
		if err := rows.Scan(&c.RunID,
			&c.Config.SimulateIOErrors,
			&c.Config.SimulateUnknownLength,
			&c.Config.SimulatePartialReads,
			&c.Pass, &c.Error); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}
