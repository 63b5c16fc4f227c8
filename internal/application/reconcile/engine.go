// Package reconcile is the reconciliation engine. It ties the matcher and
// the adjustment detector to the movement store and owns every state
// transition: apply, automatic runs, adjustments and reversal.
//
// Every command is one store transaction. The store enforces that a
// movement is linked by at most one active reconciliation, so two callers
// racing for the same movement see one success and one
// model.ErrAlreadyReconciled.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bankrecon/bankrecon/internal/domain/adjustment"
	"github.com/bankrecon/bankrecon/internal/domain/matcher"
	"github.com/bankrecon/bankrecon/internal/domain/model"
	"github.com/bankrecon/bankrecon/internal/infrastructure/storage"
)

// Options configures an Engine. Zero values use defaults.
type Options struct {
	Matcher matcher.Config
	Rules   []adjustment.Rule

	// DefaultAccounts maps rule account keys to ledger accounts for every
	// bank account; Accounts overrides them per bank account ID.
	DefaultAccounts map[string]string
	Accounts        map[string]map[string]string

	Logger *slog.Logger
	Clock  func() time.Time
	NewID  func() string
}

// Engine runs reconciliation commands and queries against a Repository.
type Engine struct {
	store    storage.Repository
	matcher  *matcher.Matcher
	detector *adjustment.Detector

	defaultAccounts map[string]string
	accounts        map[string]map[string]string

	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// New creates an engine over store.
func New(store storage.Repository, opts Options) (*Engine, error) {
	detector, err := adjustment.NewDetector(opts.Rules)
	if err != nil {
		return nil, fmt.Errorf("invalid adjustment rules: %w", err)
	}

	e := &Engine{
		store:           store,
		matcher:         matcher.NewMatcher(opts.Matcher),
		detector:        detector,
		defaultAccounts: opts.DefaultAccounts,
		accounts:        opts.Accounts,
		logger:          opts.Logger,
		now:             opts.Clock,
		newID:           opts.NewID,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e, nil
}

// Matcher returns the engine's matcher.
func (e *Engine) Matcher() *matcher.Matcher {
	return e.matcher
}

func (e *Engine) timestamp() time.Time {
	return e.now().UTC()
}

// MappingFor returns the adjustment account mapping for a bank account.
func (e *Engine) MappingFor(account *model.BankAccount) adjustment.AccountMapping {
	accounts := make(map[string]string, len(e.defaultAccounts))
	for k, v := range e.defaultAccounts {
		accounts[k] = v
	}
	for k, v := range e.accounts[account.ID] {
		accounts[k] = v
	}
	return adjustment.AccountMapping{
		BankLedgerAccount: account.LedgerAccount,
		Accounts:          accounts,
	}
}

// ================================================================
// INGESTION
// ================================================================

// RegisterAccount creates or updates a bank account.
func (e *Engine) RegisterAccount(ctx context.Context, account *model.BankAccount) error {
	if err := e.store.UpsertBankAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to register bank account: %w", err)
	}
	e.logger.Info("bank account registered", "bank_account_id", account.ID, "ledger_account", account.LedgerAccount)
	return nil
}

// Account returns a registered bank account.
func (e *Engine) Account(ctx context.Context, id string) (*model.BankAccount, error) {
	return e.store.GetBankAccount(ctx, id)
}

// Accounts lists registered bank accounts.
func (e *Engine) Accounts(ctx context.Context) ([]*model.BankAccount, error) {
	return e.store.ListBankAccounts(ctx)
}

// ImportBankMovements stores parsed statement lines for a bank account.
// The lines arrive already parsed; they are stored UNMATCHED.
func (e *Engine) ImportBankMovements(ctx context.Context, bankAccountID string, movements []*model.BankMovement) error {
	if len(movements) == 0 {
		return model.Invalidf("no bank movements to import")
	}
	for _, m := range movements {
		if m.BankAccountID == "" {
			m.BankAccountID = bankAccountID
		}
		if m.BankAccountID != bankAccountID {
			return model.Invalidf("bank movement for account %q imported into %q", m.BankAccountID, bankAccountID)
		}
	}
	if _, err := e.store.GetBankAccount(ctx, bankAccountID); err != nil {
		return err
	}
	if err := e.store.InsertBankMovements(ctx, movements); err != nil {
		return err
	}
	e.logger.Info("bank movements imported", "bank_account_id", bankAccountID, "count", len(movements))
	return nil
}

// ImportAccountingMovements stores ledger lines as UNRECONCILED.
func (e *Engine) ImportAccountingMovements(ctx context.Context, movements []*model.AccountingMovement) error {
	if len(movements) == 0 {
		return model.Invalidf("no accounting movements to import")
	}
	if err := e.store.InsertAccountingMovements(ctx, movements); err != nil {
		return err
	}
	e.logger.Info("accounting movements imported", "count", len(movements))
	return nil
}
