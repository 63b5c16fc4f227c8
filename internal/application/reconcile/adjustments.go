package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/bankrecon/bankrecon/internal/domain/adjustment"
	"github.com/bankrecon/bankrecon/internal/domain/model"
	"github.com/bankrecon/bankrecon/internal/infrastructure/storage"
)

// AdjustmentOutcome is one applied proposal.
type AdjustmentOutcome struct {
	BankMovementID      int64                `json:"bank_movement_id"`
	ReconciliationID    string               `json:"reconciliation_id"`
	Type                model.AdjustmentType `json:"type"`
	AccountingMovements []int64              `json:"accounting_movement_ids"`
}

// AdjustmentFailure is one proposal that could not be applied.
type AdjustmentFailure struct {
	BankMovementID int64  `json:"bank_movement_id"`
	Kind           string `json:"kind"`
	Message        string `json:"message"`
}

// AdjustmentResult reports every proposal independently.
type AdjustmentResult struct {
	Succeeded []AdjustmentOutcome `json:"succeeded"`
	Failed    []AdjustmentFailure `json:"failed"`
}

func (r *AdjustmentResult) fail(bankMovementID int64, err error) {
	r.Failed = append(r.Failed, AdjustmentFailure{
		BankMovementID: bankMovementID,
		Kind:           model.KindOf(err),
		Message:        err.Error(),
	})
}

// Detect proposes adjustments for the unmatched bank movements of an
// account. Movements matching no rule are left for the matcher. Missing
// account mappings are flagged on the proposal rather than failing the
// scan.
func (e *Engine) Detect(ctx context.Context, bankAccountID string, period model.DateRange) ([]model.AdjustmentProposal, error) {
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

	proposals := e.detector.Detect(bank, e.MappingFor(account))
	e.logger.Debug("adjustments detected",
		"bank_account_id", bankAccountID,
		"scanned", len(bank),
		"proposals", len(proposals),
	)
	return proposals, nil
}

// ApplyAdjustments applies each proposal in its own transaction. The
// generated lines are stored as accounting movements; the bank ledger line
// is linked to the bank movement in an ADJUSTMENT reconciliation and the
// counterpart line is left UNRECONCILED. Failures are reported per item.
func (e *Engine) ApplyAdjustments(ctx context.Context, proposals []model.AdjustmentProposal, notes, actingUser string) (*AdjustmentResult, error) {
	if actingUser == "" {
		return nil, model.Invalidf("acting user is required")
	}
	result := &AdjustmentResult{
		Succeeded: []AdjustmentOutcome{},
		Failed:    []AdjustmentFailure{},
	}
	for _, p := range proposals {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, err := e.applyProposal(ctx, p, notes, actingUser)
		if err != nil {
			e.logger.Warn("adjustment not applied",
				"bank_movement_id", p.BankMovement.ID,
				"type", p.Type,
				"error", err,
			)
			result.fail(p.BankMovement.ID, err)
			continue
		}
		result.Succeeded = append(result.Succeeded, *outcome)
	}

	e.logger.Info("adjustments applied",
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
		"acting_user", actingUser,
	)
	return result, nil
}

// ApplyAdjustmentsFor detects and applies adjustments for the selected bank
// movements of an account. Selected movements that match no rule fail with
// model.ErrInvalidRequest.
func (e *Engine) ApplyAdjustmentsFor(ctx context.Context, bankAccountID string, bankMovementIDs []int64, notes, actingUser string) (*AdjustmentResult, error) {
	if len(bankMovementIDs) == 0 {
		return nil, model.Invalidf("at least one bank movement is required")
	}
	if actingUser == "" {
		return nil, model.Invalidf("acting user is required")
	}
	account, err := e.store.GetBankAccount(ctx, bankAccountID)
	if err != nil {
		return nil, err
	}
	mapping := e.MappingFor(account)

	proposals := make([]model.AdjustmentProposal, 0, len(bankMovementIDs))
	early := &AdjustmentResult{}
	for _, id := range bankMovementIDs {
		b, err := e.store.GetBankMovement(ctx, id)
		if err != nil {
			early.fail(id, err)
			continue
		}
		if b.BankAccountID != bankAccountID {
			early.fail(id, model.NotFoundf("bank movement %d in account %q", id, bankAccountID))
			continue
		}
		if !b.IsUnmatched() {
			early.fail(id, fmt.Errorf("%w: bank movement %d is already matched", model.ErrStaleSelection, id))
			continue
		}
		rule, ok := e.detector.Classify(b)
		if !ok {
			early.fail(id, model.Invalidf("bank movement %d matches no adjustment rule", id))
			continue
		}
		proposals = append(proposals, adjustment.Build(rule, b, mapping))
	}

	result, err := e.ApplyAdjustments(ctx, proposals, notes, actingUser)
	if result != nil {
		result.Failed = append(append([]AdjustmentFailure{}, early.Failed...), result.Failed...)
	}
	return result, err
}

func (e *Engine) applyProposal(ctx context.Context, p model.AdjustmentProposal, notes, actingUser string) (*AdjustmentOutcome, error) {
	b, err := e.store.GetBankMovement(ctx, p.BankMovement.ID)
	if err != nil {
		return nil, err
	}
	if !b.IsUnmatched() {
		return nil, fmt.Errorf("%w: bank movement %d is already matched", model.ErrStaleSelection, b.ID)
	}
	if p.HasMissingAccount() {
		return nil, fmt.Errorf("%w: %v", model.ErrMissingAccountMapping, p.MissingMappings)
	}
	if len(p.Lines) == 0 || !p.Balanced() {
		return nil, model.Invalidf("adjustment for bank movement %d does not balance", b.ID)
	}
	account, err := e.store.GetBankAccount(ctx, b.BankAccountID)
	if err != nil {
		return nil, err
	}

	var linked, unlinked []*model.AccountingMovement
	var linkedValor int64
	for _, line := range p.Lines {
		m := &model.AccountingMovement{
			LedgerAccount: line.Account,
			Document:      fmt.Sprintf("ADJ-%d", b.ID),
			Date:          b.Date,
			Debit:         line.Debit,
			Credit:        line.Credit,
			Concept:       line.Concept,
		}
		if line.Account == account.LedgerAccount {
			linked = append(linked, m)
			linkedValor += m.Valor()
		} else {
			unlinked = append(unlinked, m)
		}
	}
	if len(linked) == 0 {
		return nil, model.Invalidf("adjustment for bank movement %d has no line on ledger account %s", b.ID, account.LedgerAccount)
	}
	if linkedValor != b.Amount {
		return nil, fmt.Errorf("%w: adjustment posts %s against a bank amount of %s",
			model.ErrUnbalancedRejected, model.FormatMinor(linkedValor), model.FormatMinor(b.Amount))
	}

	if notes == "" {
		notes = p.Description
	}
	rec := &model.Reconciliation{
		ID:             e.newID(),
		BankMovementID: b.ID,
		Type:           model.TypeAdjustment,
		AdjustmentType: p.Type,
		Notes:          notes,
		CreatedAt:      e.timestamp(),
		CreatedBy:      actingUser,
	}
	err = e.store.CommitReconciliation(ctx, storage.Commit{
		Reconciliation: rec,
		NewLinked:      linked,
		NewUnlinked:    unlinked,
	})
	if err != nil {
		if errors.Is(err, model.ErrAlreadyReconciled) {
			return nil, fmt.Errorf("%w: %w", model.ErrStaleSelection, err)
		}
		return nil, err
	}

	ids := make([]int64, 0, len(linked)+len(unlinked))
	for _, m := range append(linked, unlinked...) {
		ids = append(ids, m.ID)
	}
	e.logger.Info("adjustment applied",
		"reconciliation_id", rec.ID,
		"bank_movement_id", b.ID,
		"type", p.Type,
		"total", p.Total,
	)
	return &AdjustmentOutcome{
		BankMovementID:      b.ID,
		ReconciliationID:    rec.ID,
		Type:                p.Type,
		AccountingMovements: ids,
	}, nil
}
