package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/bankrecon/bankrecon/internal/domain/matcher"
	"github.com/bankrecon/bankrecon/internal/domain/model"
	"github.com/bankrecon/bankrecon/internal/infrastructure/storage"
)

// Unmatched is the open work for one account and period.
type Unmatched struct {
	BankMovements       []*model.BankMovement       `json:"bank_movements"`
	AccountingMovements []*model.AccountingMovement `json:"accounting_movements"`
}

// ApplyRequest selects the movements of a match.
type ApplyRequest struct {
	BankMovementID  int64
	AccountingIDs   []int64
	Type            model.ReconciliationType // MANUAL or AUTO; empty means MANUAL
	Notes           string
	ActingUser      string
	AllowUnbalanced bool
	Confidence      *float64 // Recorded for AUTO; the preview confidence is used when nil
}

// ListUnmatched returns the UNMATCHED bank movements of the account and the
// UNRECONCILED accounting movements of its ledger account, both ordered by
// date then ID.
func (e *Engine) ListUnmatched(ctx context.Context, bankAccountID string, period model.DateRange) (*Unmatched, error) {
	account, err := e.store.GetBankAccount(ctx, bankAccountID)
	if err != nil {
		return nil, err
	}

	bank, err := e.store.ListBankMovements(ctx, storage.BankFilter{
		BankAccountID: bankAccountID,
		Period:        period,
		Status:        model.BankUnmatched,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bank movements: %w", err)
	}

	ledger, err := e.store.ListAccountingMovements(ctx, storage.LedgerFilter{
		LedgerAccount: account.LedgerAccount,
		Period:        period,
		Status:        model.LedgerUnreconciled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounting movements: %w", err)
	}

	return &Unmatched{BankMovements: bank, AccountingMovements: ledger}, nil
}

// candidatePool returns the unreconciled lines of the bank's ledger account
// within the sanity window of the bank date.
func (e *Engine) candidatePool(ctx context.Context, bank *model.BankMovement) (*model.BankAccount, []*model.AccountingMovement, error) {
	account, err := e.store.GetBankAccount(ctx, bank.BankAccountID)
	if err != nil {
		return nil, nil, err
	}
	pool, err := e.store.ListAccountingMovements(ctx, storage.LedgerFilter{
		LedgerAccount: account.LedgerAccount,
		Period:        model.Around(bank.Date, e.matcher.Config().SanityWindowDays),
		Status:        model.LedgerUnreconciled,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	return account, pool, nil
}

// Suggest ranks candidate accounting movements for a bank movement. A
// limit of zero or less uses the configured default.
func (e *Engine) Suggest(ctx context.Context, bankMovementID int64, limit int) ([]matcher.ScoredCandidate, error) {
	bank, err := e.store.GetBankMovement(ctx, bankMovementID)
	if err != nil {
		return nil, err
	}
	if !bank.IsUnmatched() {
		return nil, fmt.Errorf("%w: bank movement %d is already matched", model.ErrStaleSelection, bank.ID)
	}
	if limit <= 0 {
		limit = e.matcher.Config().SuggestionLimit
	}

	_, pool, err := e.candidatePool(ctx, bank)
	if err != nil {
		return nil, err
	}
	return e.matcher.Rank(bank, pool, limit), nil
}

func validateSelection(bankMovementID int64, accountingIDs []int64) error {
	if bankMovementID <= 0 {
		return model.Invalidf("bank_movement_id is required")
	}
	if len(accountingIDs) == 0 {
		return model.Invalidf("at least one accounting movement is required")
	}
	seen := make(map[int64]bool, len(accountingIDs))
	for _, id := range accountingIDs {
		if seen[id] {
			return model.Invalidf("accounting movement %d selected twice", id)
		}
		seen[id] = true
	}
	return nil
}

// loadSelection fetches the selected movements and the bank's account.
func (e *Engine) loadSelection(ctx context.Context, bankMovementID int64, accountingIDs []int64) (*model.BankMovement, []*model.AccountingMovement, *model.BankAccount, error) {
	if err := validateSelection(bankMovementID, accountingIDs); err != nil {
		return nil, nil, nil, err
	}
	bank, err := e.store.GetBankMovement(ctx, bankMovementID)
	if err != nil {
		return nil, nil, nil, err
	}
	lines, err := e.store.GetAccountingMovements(ctx, accountingIDs)
	if err != nil {
		return nil, nil, nil, err
	}
	account, err := e.store.GetBankAccount(ctx, bank.BankAccountID)
	if err != nil {
		return nil, nil, nil, err
	}
	return bank, lines, account, nil
}

// openCheck returns kind wrapped around the first movement that is no
// longer open.
func openCheck(kind error, bank *model.BankMovement, lines []*model.AccountingMovement) error {
	if !bank.IsUnmatched() {
		return fmt.Errorf("%w: bank movement %d is already matched", kind, bank.ID)
	}
	for _, l := range lines {
		if !l.IsUnreconciled() {
			return fmt.Errorf("%w: accounting movement %d is already reconciled", kind, l.ID)
		}
	}
	return nil
}

// Preview computes the balance and confidence of a proposed match without
// changing anything. It fails with model.ErrStaleSelection when any
// selected movement is no longer open.
func (e *Engine) Preview(ctx context.Context, bankMovementID int64, accountingIDs []int64) (*matcher.MatchPreview, error) {
	bank, lines, account, err := e.loadSelection(ctx, bankMovementID, accountingIDs)
	if err != nil {
		return nil, err
	}
	if err := openCheck(model.ErrStaleSelection, bank, lines); err != nil {
		return nil, err
	}
	preview := e.matcher.Preview(bank, lines, account.LedgerAccount)
	return &preview, nil
}

// Apply commits a match. Movements already linked by an active
// reconciliation fail with model.ErrAlreadyReconciled; an unbalanced match
// fails with model.ErrUnbalancedRejected unless AllowUnbalanced is set.
func (e *Engine) Apply(ctx context.Context, req ApplyRequest) (*model.Reconciliation, error) {
	if req.Type == "" {
		req.Type = model.TypeManual
	}
	if req.Type != model.TypeManual && req.Type != model.TypeAuto {
		return nil, model.Invalidf("match type must be %s or %s", model.TypeManual, model.TypeAuto)
	}
	if req.ActingUser == "" {
		return nil, model.Invalidf("acting user is required")
	}

	bank, lines, account, err := e.loadSelection(ctx, req.BankMovementID, req.AccountingIDs)
	if err != nil {
		return nil, err
	}
	if err := openCheck(model.ErrAlreadyReconciled, bank, lines); err != nil {
		return nil, err
	}

	preview := e.matcher.Preview(bank, lines, account.LedgerAccount)
	if !preview.IsBalanced && !req.AllowUnbalanced {
		return nil, fmt.Errorf("%w: difference %s", model.ErrUnbalancedRejected, model.FormatMinor(preview.Difference))
	}

	rec := &model.Reconciliation{
		ID:                    e.newID(),
		BankMovementID:        bank.ID,
		AccountingMovementIDs: append([]int64(nil), req.AccountingIDs...),
		Type:                  req.Type,
		Notes:                 req.Notes,
		CreatedAt:             e.timestamp(),
		CreatedBy:             req.ActingUser,
	}
	if req.Type == model.TypeAuto {
		confidence := preview.Confidence
		if req.Confidence != nil {
			confidence = *req.Confidence
		}
		rec.Confidence = &confidence
	}

	if err := e.store.CommitReconciliation(ctx, storage.Commit{Reconciliation: rec}); err != nil {
		return nil, err
	}

	e.logger.Info("reconciliation applied",
		"reconciliation_id", rec.ID,
		"type", rec.Type,
		"bank_movement_id", rec.BankMovementID,
		"accounting_movement_ids", rec.AccountingMovementIDs,
		"balanced", preview.IsBalanced,
		"acting_user", rec.CreatedBy,
	)
	return rec, nil
}

// Reverse flips an active reconciliation to REVERSED and releases its
// movements. A second reversal fails with model.ErrAlreadyReversed.
func (e *Engine) Reverse(ctx context.Context, reconciliationID, reason, actingUser string) error {
	if reconciliationID == "" {
		return model.Invalidf("reconciliation id is required")
	}
	if reason == "" {
		return model.Invalidf("reversal reason is required")
	}
	if actingUser == "" {
		return model.Invalidf("acting user is required")
	}

	err := e.store.ReverseReconciliation(ctx, storage.Reversal{
		ReconciliationID: reconciliationID,
		Reason:           reason,
		By:               actingUser,
		At:               e.timestamp(),
	})
	if err != nil {
		if !errors.Is(err, model.ErrAlreadyReversed) && !errors.Is(err, model.ErrNotFound) {
			e.logger.Error("reversal failed", "reconciliation_id", reconciliationID, "error", err)
		}
		return err
	}

	e.logger.Info("reconciliation reversed",
		"reconciliation_id", reconciliationID,
		"reason", reason,
		"acting_user", actingUser,
	)
	return nil
}
