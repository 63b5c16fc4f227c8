package migrations

import (
	"context"
	"database/sql"
)

// upReconciliations creates the append-only reconciliation ledger.
//
// reconciliation_links holds one row per linked movement. The partial
// unique index allows a movement to appear in any number of reversed
// reconciliations but in at most one active one.
func upReconciliations(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx,
		`CREATE TABLE reconciliations (
			id TEXT PRIMARY KEY,
			bank_movement_id INTEGER NOT NULL REFERENCES bank_movements(id),
			type TEXT NOT NULL CHECK (type IN ('AUTO', 'MANUAL', 'ADJUSTMENT')),
			status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'REVERSED')),
			confidence REAL,
			adjustment_type TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			created_by TEXT NOT NULL,
			reversal_reason TEXT NOT NULL DEFAULT '',
			reversed_at TIMESTAMP,
			reversed_by TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE INDEX idx_reconciliations_bank_movement
		 ON reconciliations(bank_movement_id)`,

		`CREATE INDEX idx_reconciliations_created
		 ON reconciliations(created_at DESC)`,

		`CREATE TABLE reconciliation_links (
			reconciliation_id TEXT NOT NULL REFERENCES reconciliations(id),
			movement_kind TEXT NOT NULL CHECK (movement_kind IN ('bank', 'ledger')),
			movement_id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (reconciliation_id, movement_kind, movement_id)
		)`,

		`CREATE UNIQUE INDEX idx_reconciliation_links_active
		 ON reconciliation_links(movement_kind, movement_id) WHERE active = 1`,
	)
}

func downReconciliations(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx,
		`DROP TABLE IF EXISTS reconciliation_links`,
		`DROP TABLE IF EXISTS reconciliations`,
	)
}
