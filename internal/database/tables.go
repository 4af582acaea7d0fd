package database

import (
	"database/sql"
	"fmt"
)

// initJobsTable initializes the job history table.
func initJobsTable(tx *sql.Tx) error {
	query := `
    CREATE TABLE IF NOT EXISTS jobs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        job_id TEXT NOT NULL UNIQUE,
        url TEXT NOT NULL,
        variant TEXT NOT NULL,
        phase TEXT NOT NULL CHECK(phase IN ('queued', 'downloading', 'processing', 'finished', 'expired', 'cancelled', 'error')),
        percent REAL NOT NULL DEFAULT 0,
        filename TEXT NOT NULL DEFAULT '',
        message TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_jobs_url ON jobs(url);
    CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
    `
	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	return nil
}
