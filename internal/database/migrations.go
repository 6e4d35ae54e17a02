package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
//
// The post tables are not migrated: every load drops and recreates them
// (see ReplacePosts).
var migrations = []Migration{
	{
		Version:     1,
		Description: "ingest run log",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS ingest_runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    status TEXT NOT NULL DEFAULT 'running',
    rows_loaded INTEGER DEFAULT 0,
    rows_skipped INTEGER DEFAULT 0,
    bad_timestamps INTEGER DEFAULT 0,
    error TEXT
);

CREATE TABLE IF NOT EXISTS ingest_sources (
    run_id TEXT NOT NULL REFERENCES ingest_runs(id),
    source TEXT NOT NULL,
    path TEXT NOT NULL,
    rows_loaded INTEGER DEFAULT 0,
    rows_skipped INTEGER DEFAULT 0,
    bad_timestamps INTEGER DEFAULT 0,
    PRIMARY KEY (run_id, source)
);

CREATE INDEX IF NOT EXISTS idx_ingest_runs_started ON ingest_runs(started_at);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "drop legacy frame tables",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
DROP TABLE IF EXISTS trump_tweets;
DROP TABLE IF EXISTS reddit_comments;
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
