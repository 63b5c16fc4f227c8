package reconcile

import (
	"context"

	"github.com/bankrecon/bankrecon/internal/domain/model"
	"github.com/bankrecon/bankrecon/internal/infrastructure/storage"
)

// HistoryFilter narrows a history listing. Dates compare against the
// reconciliation's creation date.
type HistoryFilter struct {
	Period model.DateRange
	Type   model.ReconciliationType
	Status model.ReconciliationStatus
	Limit  int
	Offset int
}

// History lists the reconciliations of an account, newest first.
func (e *Engine) History(ctx context.Context, bankAccountID string, filter HistoryFilter) (*storage.ReconciliationPage, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, model.Invalidf("unknown reconciliation type %q", filter.Type)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, model.Invalidf("unknown reconciliation status %q", filter.Status)
	}
	if _, err := e.store.GetBankAccount(ctx, bankAccountID); err != nil {
		return nil, err
	}
	return e.store.ListReconciliations(ctx, storage.ReconciliationFilter{
		BankAccountID: bankAccountID,
		Period:        filter.Period,
		Type:          filter.Type,
		Status:        filter.Status,
		Limit:         filter.Limit,
		Offset:        filter.Offset,
	})
}

// Detail returns a reconciliation with the movements it links.
func (e *Engine) Detail(ctx context.Context, reconciliationID string) (*model.ReconciliationDetail, error) {
	rec, err := e.store.GetReconciliation(ctx, reconciliationID)
	if err != nil {
		return nil, err
	}
	bank, err := e.store.GetBankMovement(ctx, rec.BankMovementID)
	if err != nil {
		return nil, err
	}
	lines, err := e.store.GetAccountingMovements(ctx, rec.AccountingMovementIDs)
	if err != nil {
		return nil, err
	}
	return &model.ReconciliationDetail{
		Reconciliation:      rec,
		BankMovement:        bank,
		AccountingMovements: lines,
	}, nil
}

// Summary returns the reconciliation figures of an account and period.
func (e *Engine) Summary(ctx context.Context, bankAccountID string, period model.DateRange) (*storage.Summary, error) {
	return e.store.GetSummary(ctx, bankAccountID, period)
}

// Runs lists recent automatic runs, newest first.
func (e *Engine) Runs(ctx context.Context, limit int) ([]*model.MatchingRun, error) {
	return e.store.ListMatchingRuns(ctx, limit)
}

// Run returns one automatic run.
func (e *Engine) Run(ctx context.Context, id string) (*model.MatchingRun, error) {
	return e.store.GetMatchingRun(ctx, id)
}
