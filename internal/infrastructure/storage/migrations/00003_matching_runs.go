package migrations

import (
	"context"
	"database/sql"
)

// upMatchingRuns creates the automatic run log.
func upMatchingRuns(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx,
		`CREATE TABLE matching_runs (
			id TEXT PRIMARY KEY,
			bank_account_id TEXT NOT NULL,
			period_from TEXT NOT NULL DEFAULT '',
			period_to TEXT NOT NULL DEFAULT '',
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			started_by TEXT NOT NULL DEFAULT '',
			applied INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'running'
		)`,

		`CREATE INDEX idx_matching_runs_started
		 ON matching_runs(started_at DESC)`,
	)
}

func downMatchingRuns(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx, `DROP TABLE IF EXISTS matching_runs`)
}
