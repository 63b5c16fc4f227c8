package storage

import (
	"context"
	"time"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, in-memory)
// and makes testing straightforward.
type Repository interface {
	AccountRepository
	MovementRepository
	ReconciliationRepository
	MatchingRunRepository
	Close() error
}

// AccountRepository handles bank account registration
type AccountRepository interface {
	// UpsertBankAccount creates or updates a bank account by ID
	UpsertBankAccount(ctx context.Context, account *model.BankAccount) error

	// GetBankAccount returns model.ErrNotFound for unknown IDs
	GetBankAccount(ctx context.Context, id string) (*model.BankAccount, error)

	// ListBankAccounts returns all accounts ordered by ID
	ListBankAccounts(ctx context.Context) ([]*model.BankAccount, error)
}

// MovementRepository handles the two movement streams
type MovementRepository interface {
	// InsertBankMovements stores imported statement lines as UNMATCHED and sets their IDs
	InsertBankMovements(ctx context.Context, movements []*model.BankMovement) error

	// InsertAccountingMovements stores ledger lines as UNRECONCILED and sets their IDs
	InsertAccountingMovements(ctx context.Context, movements []*model.AccountingMovement) error

	// GetBankMovement returns model.ErrNotFound for unknown IDs
	GetBankMovement(ctx context.Context, id int64) (*model.BankMovement, error)

	// GetAccountingMovements returns the movements in the order of ids, or
	// model.ErrNotFound if any is unknown
	GetAccountingMovements(ctx context.Context, ids []int64) ([]*model.AccountingMovement, error)

	// ListBankMovements returns movements ordered by date, then ID
	ListBankMovements(ctx context.Context, filter BankFilter) ([]*model.BankMovement, error)

	// ListAccountingMovements returns movements ordered by date, then ID
	ListAccountingMovements(ctx context.Context, filter LedgerFilter) ([]*model.AccountingMovement, error)
}

// ReconciliationRepository handles the append-only reconciliation ledger
type ReconciliationRepository interface {
	// CommitReconciliation applies a Commit atomically. It fails with
	// model.ErrAlreadyReconciled when any movement is already linked by an
	// active reconciliation and model.ErrNotFound for unknown movements.
	CommitReconciliation(ctx context.Context, commit Commit) error

	// ReverseReconciliation flips an active reconciliation to REVERSED and
	// releases its movements. Fails with model.ErrAlreadyReversed when it
	// is not active.
	ReverseReconciliation(ctx context.Context, reversal Reversal) error

	// GetReconciliation returns model.ErrNotFound for unknown IDs
	GetReconciliation(ctx context.Context, id string) (*model.Reconciliation, error)

	// ListReconciliations returns a page of reconciliations, newest first
	ListReconciliations(ctx context.Context, filter ReconciliationFilter) (*ReconciliationPage, error)

	// GetSummary returns aggregate counts for an account and period
	GetSummary(ctx context.Context, bankAccountID string, period model.DateRange) (*Summary, error)
}

// MatchingRunRepository handles automatic run tracking
type MatchingRunRepository interface {
	// StartMatchingRun records the start of an automatic run
	StartMatchingRun(ctx context.Context, run *model.MatchingRun) error

	// CompleteMatchingRun records the outcome of an automatic run
	CompleteMatchingRun(ctx context.Context, id string, applied, skipped int, status string, at time.Time) error

	// ListMatchingRuns returns recent runs, newest first
	ListMatchingRuns(ctx context.Context, limit int) ([]*model.MatchingRun, error)

	// GetMatchingRun returns model.ErrNotFound for unknown IDs
	GetMatchingRun(ctx context.Context, id string) (*model.MatchingRun, error)
}
