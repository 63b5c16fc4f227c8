package migrations

import (
	"context"
	"database/sql"
)

// upMovements creates bank accounts and the two movement streams.
// Dates are stored as YYYY-MM-DD text so range filters compare as strings.
func upMovements(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx,
		`CREATE TABLE bank_accounts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			ledger_account TEXT NOT NULL
		)`,

		`CREATE TABLE bank_movements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bank_account_id TEXT NOT NULL REFERENCES bank_accounts(id),
			date TEXT NOT NULL,
			amount INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			reference TEXT NOT NULL DEFAULT '',
			running_balance INTEGER,
			status TEXT NOT NULL DEFAULT 'UNMATCHED'
				CHECK (status IN ('UNMATCHED', 'MATCHED')),
			imported_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX idx_bank_movements_account_date
		 ON bank_movements(bank_account_id, date, id)`,

		`CREATE INDEX idx_bank_movements_unmatched
		 ON bank_movements(bank_account_id, date) WHERE status = 'UNMATCHED'`,

		`CREATE TABLE accounting_movements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ledger_account TEXT NOT NULL,
			document TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			debit INTEGER NOT NULL DEFAULT 0 CHECK (debit >= 0),
			credit INTEGER NOT NULL DEFAULT 0 CHECK (credit >= 0),
			concept TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'UNRECONCILED'
				CHECK (status IN ('UNRECONCILED', 'RECONCILED')),
			CHECK ((debit = 0) <> (credit = 0))
		)`,

		`CREATE INDEX idx_accounting_movements_account_date
		 ON accounting_movements(ledger_account, date, id)`,
	)
}

func downMovements(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx,
		`DROP TABLE IF EXISTS accounting_movements`,
		`DROP TABLE IF EXISTS bank_movements`,
		`DROP TABLE IF EXISTS bank_accounts`,
	)
}
