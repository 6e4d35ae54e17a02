package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ingest run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// runTimeLayout has fixed-width fractions so stored times sort as text.
const runTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// IngestRun is one execution of the ingestion stage.
type IngestRun struct {
	ID            string         `json:"id"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
	Status        string         `json:"status"`
	RowsLoaded    int            `json:"rows_loaded"`
	RowsSkipped   int            `json:"rows_skipped"`
	BadTimestamps int            `json:"bad_timestamps"`
	Error         *string        `json:"error,omitempty"`
	Sources       []IngestSource `json:"sources"`
}

// IngestSource holds the counts of one source within an ingest run.
type IngestSource struct {
	Source        string `json:"source"`
	Path          string `json:"path"`
	RowsLoaded    int    `json:"rows_loaded"`
	RowsSkipped   int    `json:"rows_skipped"`
	BadTimestamps int    `json:"bad_timestamps"`
}

// StartIngestRun records a new running ingest and returns its id.
func (db *DB) StartIngestRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO ingest_runs (id, started_at, status) VALUES (?, ?, ?)",
		id, time.Now().UTC().Format(runTimeLayout), RunRunning,
	)
	if err != nil {
		return "", fmt.Errorf("starting ingest run: %w", err)
	}
	return id, nil
}

// RecordIngestSource stores the counts of one source load.
func (db *DB) RecordIngestSource(ctx context.Context, runID string, s IngestSource) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO ingest_sources (run_id, source, path, rows_loaded, rows_skipped, bad_timestamps)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, s.Source, s.Path, s.RowsLoaded, s.RowsSkipped, s.BadTimestamps,
	)
	if err != nil {
		return fmt.Errorf("recording ingest source: %w", err)
	}
	return nil
}

// FinishIngestRun closes a run, totalling its source counts. A non-nil
// runErr marks the run failed.
func (db *DB) FinishIngestRun(ctx context.Context, runID string, runErr error) error {
	status := RunSucceeded
	var msg *string
	if runErr != nil {
		status = RunFailed
		s := runErr.Error()
		msg = &s
	}
	_, err := db.conn.ExecContext(ctx,
		`UPDATE ingest_runs SET
			finished_at = ?,
			status = ?,
			error = ?,
			rows_loaded = (SELECT COALESCE(SUM(rows_loaded), 0) FROM ingest_sources WHERE run_id = ?),
			rows_skipped = (SELECT COALESCE(SUM(rows_skipped), 0) FROM ingest_sources WHERE run_id = ?),
			bad_timestamps = (SELECT COALESCE(SUM(bad_timestamps), 0) FROM ingest_sources WHERE run_id = ?)
		WHERE id = ?`,
		time.Now().UTC().Format(runTimeLayout), status, msg, runID, runID, runID, runID,
	)
	if err != nil {
		return fmt.Errorf("finishing ingest run: %w", err)
	}
	return nil
}

// LastIngestRun returns the most recently started run, or nil if none.
func (db *DB) LastIngestRun(ctx context.Context) (*IngestRun, error) {
	var (
		run                 IngestRun
		started             string
		finished, errString sql.NullString
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, status, rows_loaded, rows_skipped, bad_timestamps, error
		FROM ingest_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&run.ID, &started, &finished, &run.Status, &run.RowsLoaded, &run.RowsSkipped, &run.BadTimestamps, &errString)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last ingest run: %w", err)
	}

	if run.StartedAt, err = time.Parse(runTimeLayout, started); err != nil {
		return nil, fmt.Errorf("parsing run start: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(runTimeLayout, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parsing run end: %w", err)
		}
		run.FinishedAt = &t
	}
	run.Error = nullString(errString)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT source, path, rows_loaded, rows_skipped, bad_timestamps
		FROM ingest_sources WHERE run_id = ? ORDER BY source`, run.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("reading ingest sources: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var s IngestSource
		if err := rows.Scan(&s.Source, &s.Path, &s.RowsLoaded, &s.RowsSkipped, &s.BadTimestamps); err != nil {
			return nil, err
		}
		run.Sources = append(run.Sources, s)
	}
	return &run, rows.Err()
}
