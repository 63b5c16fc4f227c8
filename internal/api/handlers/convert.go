package handlers

import (
	"time"

	"github.com/bankrecon/bankrecon/internal/api/dto"
	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/domain/matcher"
	"github.com/bankrecon/bankrecon/internal/domain/model"
	"github.com/bankrecon/bankrecon/internal/infrastructure/storage"
)

func toAccountResponse(a *model.BankAccount) dto.AccountResponse {
	return dto.AccountResponse{ID: a.ID, Name: a.Name, LedgerAccount: a.LedgerAccount}
}

func toBankMovementResponse(b *model.BankMovement) dto.BankMovementResponse {
	return dto.BankMovementResponse{
		ID:             b.ID,
		BankAccountID:  b.BankAccountID,
		Date:           formatDay(b.Date),
		Amount:         b.Amount,
		AmountDisplay:  model.FormatMinor(b.Amount),
		Description:    b.Description,
		Reference:      b.Reference,
		RunningBalance: b.RunningBalance,
		Status:         string(b.Status),
	}
}

func toBankMovementResponses(in []*model.BankMovement) []dto.BankMovementResponse {
	out := make([]dto.BankMovementResponse, 0, len(in))
	for _, b := range in {
		out = append(out, toBankMovementResponse(b))
	}
	return out
}

func toAccountingMovementResponse(a *model.AccountingMovement) dto.AccountingMovementResponse {
	return dto.AccountingMovementResponse{
		ID:            a.ID,
		LedgerAccount: a.LedgerAccount,
		Document:      a.Document,
		Date:          formatDay(a.Date),
		Debit:         a.Debit,
		Credit:        a.Credit,
		Valor:         a.Valor(),
		ValorDisplay:  model.FormatMinor(a.Valor()),
		Concept:       a.Concept,
		Status:        string(a.Status),
	}
}

func toAccountingMovementResponses(in []*model.AccountingMovement) []dto.AccountingMovementResponse {
	out := make([]dto.AccountingMovementResponse, 0, len(in))
	for _, a := range in {
		out = append(out, toAccountingMovementResponse(a))
	}
	return out
}

func toSuggestionResponse(c matcher.ScoredCandidate) dto.SuggestionResponse {
	return dto.SuggestionResponse{
		Movement:   toAccountingMovementResponse(c.Movement),
		Score:      c.Score,
		Breakdown:  c.Breakdown,
		DateGap:    c.DateGap,
		AmountDiff: c.AmountDiff,
	}
}

func toPreviewResponse(p *matcher.MatchPreview) dto.PreviewResponse {
	resp := dto.PreviewResponse{
		BankMovementID:        p.BankMovementID,
		AccountingMovementIDs: p.AccountingMovementIDs,
		BankAmount:            p.BankAmount,
		AccountingTotal:       p.AccountingTotal,
		Difference:            p.Difference,
		DifferenceDisplay:     model.FormatMinor(p.Difference),
		IsBalanced:            p.IsBalanced,
		Confidence:            p.Confidence,
		Warnings:              make([]dto.WarningResponse, 0, len(p.Warnings)),
	}
	for _, w := range p.Warnings {
		resp.Warnings = append(resp.Warnings, dto.WarningResponse{
			Code:                 w.Code,
			Message:              w.Message,
			AccountingMovementID: w.AccountingMovementID,
		})
	}
	return resp
}

func toReconciliationResponse(r *model.Reconciliation) dto.ReconciliationResponse {
	ids := r.AccountingMovementIDs
	if ids == nil {
		ids = []int64{}
	}
	return dto.ReconciliationResponse{
		ID:                    r.ID,
		BankMovementID:        r.BankMovementID,
		AccountingMovementIDs: ids,
		Type:                  string(r.Type),
		Status:                string(r.Status),
		Confidence:            r.Confidence,
		AdjustmentType:        string(r.AdjustmentType),
		Notes:                 r.Notes,
		CreatedAt:             r.CreatedAt.UTC().Format(time.RFC3339),
		CreatedBy:             r.CreatedBy,
		ReversalReason:        r.ReversalReason,
		ReversedAt:            formatTimePtr(r.ReversedAt),
		ReversedBy:            r.ReversedBy,
	}
}

func toAutoMatchResponse(r *reconcile.AutoResult) dto.AutoMatchResponse {
	ids := r.ReconciliationIDs
	if ids == nil {
		ids = []string{}
	}
	return dto.AutoMatchResponse{
		RunID:             r.RunID,
		Applied:           r.Applied,
		Skipped:           r.Skipped,
		ReconciliationIDs: ids,
	}
}

func toProposalResponse(p model.AdjustmentProposal) dto.AdjustmentProposalResponse {
	resp := dto.AdjustmentProposalResponse{
		BankMovement:     toBankMovementResponse(&p.BankMovement),
		Type:             string(p.Type),
		Rule:             p.Rule,
		Description:      p.Description,
		Lines:            make([]dto.EntryLineResponse, 0, len(p.Lines)),
		Total:            p.Total,
		TotalDisplay:     model.FormatMinor(p.Total),
		RequiresApproval: p.RequiresApproval,
		MissingMappings:  p.MissingMappings,
	}
	for _, l := range p.Lines {
		resp.Lines = append(resp.Lines, dto.EntryLineResponse{
			Account: l.Account,
			Debit:   l.Debit,
			Credit:  l.Credit,
			Concept: l.Concept,
		})
	}
	return resp
}

func toApplyAdjustmentsResponse(r *reconcile.AdjustmentResult) dto.ApplyAdjustmentsResponse {
	resp := dto.ApplyAdjustmentsResponse{
		Succeeded: make([]dto.AdjustmentOutcomeResponse, 0, len(r.Succeeded)),
		Failed:    make([]dto.AdjustmentFailureResponse, 0, len(r.Failed)),
	}
	for _, s := range r.Succeeded {
		resp.Succeeded = append(resp.Succeeded, dto.AdjustmentOutcomeResponse{
			BankMovementID:        s.BankMovementID,
			ReconciliationID:      s.ReconciliationID,
			Type:                  string(s.Type),
			AccountingMovementIDs: s.AccountingMovements,
		})
	}
	for _, f := range r.Failed {
		resp.Failed = append(resp.Failed, dto.AdjustmentFailureResponse{
			BankMovementID: f.BankMovementID,
			Code:           f.Kind,
			Message:        f.Message,
		})
	}
	return resp
}

func toSummaryResponse(s *storage.Summary) dto.SummaryResponse {
	byType := make(map[string]int, len(s.ActiveByType))
	for t, n := range s.ActiveByType {
		byType[string(t)] = n
	}
	return dto.SummaryResponse{
		BankAccountID:          s.BankAccountID,
		BankTotal:              s.BankTotal,
		BankMatched:            s.BankMatched,
		BankUnmatched:          s.BankUnmatched,
		MatchedAmount:          s.MatchedAmount,
		MatchedAmountDisplay:   model.FormatMinor(s.MatchedAmount),
		UnmatchedAmount:        s.UnmatchedAmount,
		UnmatchedAmountDisplay: model.FormatMinor(s.UnmatchedAmount),
		LedgerTotal:            s.LedgerTotal,
		LedgerReconciled:       s.LedgerReconciled,
		LedgerUnreconciled:     s.LedgerUnreconciled,
		ActiveByType:           byType,
		Reversed:               s.Reversed,
		MatchRate:              s.MatchRate,
	}
}

func toMatchingRunResponse(run *model.MatchingRun) dto.MatchingRunResponse {
	return dto.MatchingRunResponse{
		ID:            run.ID,
		BankAccountID: run.BankAccountID,
		From:          formatDay(run.From),
		To:            formatDay(run.To),
		StartedAt:     run.StartedAt.UTC().Format(time.RFC3339),
		CompletedAt:   formatTimePtr(run.CompletedAt),
		StartedBy:     run.StartedBy,
		Applied:       run.Applied,
		Skipped:       run.Skipped,
		Status:        run.Status,
	}
}
