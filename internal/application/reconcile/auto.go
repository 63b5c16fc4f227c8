package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bankrecon/bankrecon/internal/domain/model"
	"github.com/bankrecon/bankrecon/internal/infrastructure/storage"
)

// AutoRequest selects the movements of an automatic run.
type AutoRequest struct {
	BankAccountID string
	Period        model.DateRange
	ActingUser    string

	// Progress, if set, is called after each bank movement.
	Progress func(AutoProgress)
}

// AutoProgress reports how far a run has got.
type AutoProgress struct {
	Total     int
	Processed int
	Applied   int
	Skipped   int
}

// AutoResult is the outcome of an automatic run.
type AutoResult struct {
	RunID             string   `json:"run_id"`
	Applied           int      `json:"applied"`
	Skipped           int      `json:"skipped"`
	ReconciliationIDs []string `json:"reconciliation_ids"`
}

// RunAutomatic walks the unmatched bank movements of the account in date
// then ID order and applies the top suggestion when it meets the automatic
// threshold and balances exactly. Everything else is skipped for manual
// handling. A movement lost to a concurrent caller counts as skipped.
//
// The walk is sequential so a rerun over unchanged data applies nothing.
func (e *Engine) RunAutomatic(ctx context.Context, req AutoRequest) (*AutoResult, error) {
	if req.ActingUser == "" {
		req.ActingUser = "auto-matcher"
	}
	account, err := e.store.GetBankAccount(ctx, req.BankAccountID)
	if err != nil {
		return nil, err
	}

	run := &model.MatchingRun{
		ID:            e.newID(),
		BankAccountID: account.ID,
		From:          req.Period.From,
		To:            req.Period.To,
		StartedAt:     e.timestamp(),
		StartedBy:     req.ActingUser,
	}
	if err := e.store.StartMatchingRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start matching run: %w", err)
	}

	logger := e.logger.With("run_id", run.ID, "bank_account_id", account.ID)
	logger.Info("automatic run started",
		"from", optionalDay(req.Period.From),
		"to", optionalDay(req.Period.To),
	)

	result, err := e.runAutomatic(ctx, account, req, run.ID)

	status := model.RunCompleted
	if err != nil {
		status = model.RunFailed
	}
	// The run log is written even when the caller's context is gone.
	if cerr := e.store.CompleteMatchingRun(context.WithoutCancel(ctx), run.ID, result.Applied, result.Skipped, status, e.timestamp()); cerr != nil {
		logger.Error("failed to complete matching run", "error", cerr)
	}

	if err != nil {
		logger.Error("automatic run failed", "applied", result.Applied, "skipped", result.Skipped, "error", err)
		return result, err
	}
	logger.Info("automatic run completed", "applied", result.Applied, "skipped", result.Skipped)
	return result, nil
}

func (e *Engine) runAutomatic(ctx context.Context, account *model.BankAccount, req AutoRequest, runID string) (*AutoResult, error) {
	result := &AutoResult{RunID: runID, ReconciliationIDs: []string{}}

	bank, err := e.store.ListBankMovements(ctx, storage.BankFilter{
		BankAccountID: account.ID,
		Period:        req.Period,
		Status:        model.BankUnmatched,
	})
	if err != nil {
		return result, fmt.Errorf("failed to list bank movements: %w", err)
	}
	if len(bank) == 0 {
		return result, nil
	}

	// One read of the ledger covers every candidate window in the run
	window := e.matcher.Config().SanityWindowDays
	span := model.DateRange{
		From: bank[0].Date.AddDate(0, 0, -window),
		To:   bank[len(bank)-1].Date.AddDate(0, 0, window),
	}
	ledger, err := e.store.ListAccountingMovements(ctx, storage.LedgerFilter{
		LedgerAccount: account.LedgerAccount,
		Period:        span,
		Status:        model.LedgerUnreconciled,
	})
	if err != nil {
		return result, fmt.Errorf("failed to list accounting movements: %w", err)
	}
	used := make(map[int64]bool)

	for i, b := range bank {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		applied, err := e.autoApplyOne(ctx, b, ledger, used, req.ActingUser)
		switch {
		case err == nil && applied != nil:
			result.Applied++
			result.ReconciliationIDs = append(result.ReconciliationIDs, applied.ID)
			for _, id := range applied.AccountingMovementIDs {
				used[id] = true
			}
		case err == nil:
			result.Skipped++
		case errors.Is(err, model.ErrAlreadyReconciled), errors.Is(err, model.ErrStaleSelection):
			e.logger.Debug("movement taken by a concurrent match", "bank_movement_id", b.ID, "error", err)
			result.Skipped++
		default:
			return result, err
		}

		if req.Progress != nil {
			req.Progress(AutoProgress{
				Total:     len(bank),
				Processed: i + 1,
				Applied:   result.Applied,
				Skipped:   result.Skipped,
			})
		}
	}
	return result, nil
}

// autoApplyOne applies the best candidate for b if it qualifies. It
// returns nil without error when b is skipped.
func (e *Engine) autoApplyOne(ctx context.Context, b *model.BankMovement, ledger []*model.AccountingMovement, used map[int64]bool, actingUser string) (*model.Reconciliation, error) {
	window := model.Around(b.Date, e.matcher.Config().SanityWindowDays)
	pool := make([]*model.AccountingMovement, 0)
	for _, l := range ledger {
		if !used[l.ID] && window.Contains(l.Date) {
			pool = append(pool, l)
		}
	}

	top := e.matcher.Rank(b, pool, 1)
	if len(top) == 0 || !e.matcher.IsAutoMatch(b, top[0]) {
		return nil, nil
	}

	score := top[0].Score
	return e.Apply(ctx, ApplyRequest{
		BankMovementID: b.ID,
		AccountingIDs:  []int64{top[0].Movement.ID},
		Type:           model.TypeAuto,
		Notes:          fmt.Sprintf("automatic match, score %.2f", score),
		ActingUser:     actingUser,
		Confidence:     &score,
	})
}

func optionalDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}
