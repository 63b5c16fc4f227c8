package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// Storage provides SQLite database access for movements and reconciliations.
// It implements the Repository interface.
//
// All access goes through a single connection with immediate transactions,
// so every command is serialized against every other writer.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	return Open(context.Background(), dbPath, nil)
}

// Open opens the database at dbPath and runs pending migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Storage{db: db, logger: logger}

	// Run all pending migrations
	if _, err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// dsn adds the connection options the store relies on: foreign keys,
// WAL, and BEGIN IMMEDIATE so a transaction holds the write lock from its
// first statement.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000&_txlock=immediate&_journal_mode=WAL"
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// inTx runs fn in a transaction, rolling back on error.
func (s *Storage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// ================================================================
// BANK ACCOUNTS
// ================================================================

// UpsertBankAccount creates or updates a bank account by ID
func (s *Storage) UpsertBankAccount(ctx context.Context, account *model.BankAccount) error {
	if account.ID == "" || account.LedgerAccount == "" {
		return model.Invalidf("bank account requires id and ledger_account")
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO bank_accounts (id, name, ledger_account) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET name = excluded.name, ledger_account = excluded.ledger_account
	`, account.ID, account.Name, account.LedgerAccount)
	return err
}

// GetBankAccount retrieves a bank account by ID
func (s *Storage) GetBankAccount(ctx context.Context, id string) (*model.BankAccount, error) {
	account := &model.BankAccount{}
	err := s.db.QueryRowContext(ctx, `
	SELECT id, name, ledger_account FROM bank_accounts WHERE id = ?
	`, id).Scan(&account.ID, &account.Name, &account.LedgerAccount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("bank account %q", id)
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ListBankAccounts returns all bank accounts
func (s *Storage) ListBankAccounts(ctx context.Context) ([]*model.BankAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, ledger_account FROM bank_accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	accounts := make([]*model.BankAccount, 0)
	for rows.Next() {
		a := &model.BankAccount{}
		if err := rows.Scan(&a.ID, &a.Name, &a.LedgerAccount); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ================================================================
// MOVEMENTS
// ================================================================

// InsertBankMovements stores statement lines as UNMATCHED
func (s *Storage) InsertBankMovements(ctx context.Context, movements []*model.BankMovement) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, m := range movements {
			if err := m.Validate(); err != nil {
				return err
			}
			var balance sql.NullInt64
			if m.RunningBalance != nil {
				balance = sql.NullInt64{Int64: *m.RunningBalance, Valid: true}
			}
			res, err := tx.ExecContext(ctx, `
			INSERT INTO bank_movements
			(bank_account_id, date, amount, description, reference, running_balance, status)
			VALUES (?, ?, ?, ?, ?, ?, 'UNMATCHED')
			`, m.BankAccountID, formatDate(m.Date), m.Amount, m.Description, m.Reference, balance)
			if err != nil {
				var sqliteErr sqlite3.Error
				if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
					return model.NotFoundf("bank account %q", m.BankAccountID)
				}
				return fmt.Errorf("failed to insert bank movement: %w", err)
			}
			if m.ID, err = res.LastInsertId(); err != nil {
				return err
			}
			m.Status = model.BankUnmatched
			m.Date = model.TruncateDay(m.Date)
		}
		return nil
	})
}

// InsertAccountingMovements stores ledger lines as UNRECONCILED
func (s *Storage) InsertAccountingMovements(ctx context.Context, movements []*model.AccountingMovement) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, m := range movements {
			m.Status = model.LedgerUnreconciled
			if err := insertAccounting(ctx, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertAccounting(ctx context.Context, tx *sql.Tx, m *model.AccountingMovement) error {
	if err := m.Validate(); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
	INSERT INTO accounting_movements
	(ledger_account, document, date, debit, credit, concept, status)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.LedgerAccount, m.Document, formatDate(m.Date), m.Debit, m.Credit, m.Concept, string(m.Status))
	if err != nil {
		return fmt.Errorf("failed to insert accounting movement: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	m.Date = model.TruncateDay(m.Date)
	return nil
}

const bankColumns = `id, bank_account_id, date, amount, description, reference, running_balance, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBank(row rowScanner) (*model.BankMovement, error) {
	m := &model.BankMovement{}
	var date, status string
	var balance sql.NullInt64
	if err := row.Scan(&m.ID, &m.BankAccountID, &date, &m.Amount, &m.Description, &m.Reference, &balance, &status); err != nil {
		return nil, err
	}
	d, err := parseDate(date)
	if err != nil {
		return nil, fmt.Errorf("bank movement %d: %w", m.ID, err)
	}
	m.Date = d
	m.Status = model.BankStatus(status)
	if balance.Valid {
		v := balance.Int64
		m.RunningBalance = &v
	}
	return m, nil
}

const ledgerColumns = `id, ledger_account, document, date, debit, credit, concept, status`

func scanLedger(row rowScanner) (*model.AccountingMovement, error) {
	m := &model.AccountingMovement{}
	var date, status string
	if err := row.Scan(&m.ID, &m.LedgerAccount, &m.Document, &date, &m.Debit, &m.Credit, &m.Concept, &status); err != nil {
		return nil, err
	}
	d, err := parseDate(date)
	if err != nil {
		return nil, fmt.Errorf("accounting movement %d: %w", m.ID, err)
	}
	m.Date = d
	m.Status = model.LedgerStatus(status)
	return m, nil
}

// GetBankMovement retrieves a bank movement by ID
func (s *Storage) GetBankMovement(ctx context.Context, id int64) (*model.BankMovement, error) {
	m, err := scanBank(s.db.QueryRowContext(ctx, `SELECT `+bankColumns+` FROM bank_movements WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.NotFoundf("bank movement %d", id)
	}
	return m, err
}

// GetAccountingMovements retrieves accounting movements in the order of ids
func (s *Storage) GetAccountingMovements(ctx context.Context, ids []int64) ([]*model.AccountingMovement, error) {
	if len(ids) == 0 {
		return []*model.AccountingMovement{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+ledgerColumns+` FROM accounting_movements WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[int64]*model.AccountingMovement, len(ids))
	for rows.Next() {
		m, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		byID[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]*model.AccountingMovement, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok {
			return nil, model.NotFoundf("accounting movement %d", id)
		}
		result = append(result, m)
	}
	return result, nil
}

// periodClause appends date bounds on column to where/args.
func periodClause(column string, period model.DateRange, where []string, args []any) ([]string, []any) {
	if !period.From.IsZero() {
		where = append(where, column+" >= ?")
		args = append(args, formatDate(period.From))
	}
	if !period.To.IsZero() {
		where = append(where, column+" <= ?")
		args = append(args, formatDate(period.To))
	}
	return where, args
}

// ListBankMovements returns bank movements matching filter ordered by date, then ID
func (s *Storage) ListBankMovements(ctx context.Context, filter BankFilter) ([]*model.BankMovement, error) {
	where := []string{"bank_account_id = ?"}
	args := []any{filter.BankAccountID}
	where, args = periodClause("date", filter.Period, where, args)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bankColumns+` FROM bank_movements WHERE `+strings.Join(where, " AND ")+` ORDER BY date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	movements := make([]*model.BankMovement, 0)
	for rows.Next() {
		m, err := scanBank(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListAccountingMovements returns accounting movements matching filter ordered by date, then ID
func (s *Storage) ListAccountingMovements(ctx context.Context, filter LedgerFilter) ([]*model.AccountingMovement, error) {
	where := []string{"ledger_account = ?"}
	args := []any{filter.LedgerAccount}
	where, args = periodClause("date", filter.Period, where, args)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM accounting_movements WHERE `+strings.Join(where, " AND ")+` ORDER BY date, id`, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	movements := make([]*model.AccountingMovement, 0)
	for rows.Next() {
		m, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}
