package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/bankrecon/bankrecon/internal/application/reconcile"
	"github.com/bankrecon/bankrecon/internal/domain/model"
	"github.com/bankrecon/bankrecon/internal/infrastructure/storage"
)

var rule = strings.Repeat("-", 72)

// PrintHeader prints the command banner
func PrintHeader(w io.Writer, command, bankAccountID string, period model.DateRange) {
	fmt.Fprintf(w, "bankrecon %s: %s (%s)\n", command, bankAccountID, describePeriod(period))
}

func describePeriod(p model.DateRange) string {
	switch {
	case p.From.IsZero() && p.To.IsZero():
		return "all dates"
	case p.From.IsZero():
		return "up to " + p.To.Format(dayLayout)
	case p.To.IsZero():
		return "from " + p.From.Format(dayLayout)
	}
	return p.From.Format(dayLayout) + " to " + p.To.Format(dayLayout)
}

// PrintAutoSummary prints the result of an automatic run
func PrintAutoSummary(w io.Writer, result *reconcile.AutoResult) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Run %s: Applied=%d Skipped=%d\n", result.RunID, result.Applied, result.Skipped)
	for _, id := range result.ReconciliationIDs {
		fmt.Fprintf(w, "  + %s\n", id)
	}
}

// PrintProposals prints detected adjustments with their entry lines
func PrintProposals(w io.Writer, proposals []model.AdjustmentProposal) {
	if len(proposals) == 0 {
		fmt.Fprintln(w, "No adjustments detected.")
		return
	}
	for _, p := range proposals {
		flag := ""
		if p.RequiresApproval {
			flag = "  [review]"
		}
		fmt.Fprintf(w, "#%-6d %s %-12s %12s  %s%s\n",
			p.BankMovement.ID,
			p.BankMovement.Date.Format(dayLayout),
			p.Type,
			model.FormatMinor(p.BankMovement.Amount),
			p.BankMovement.Description,
			flag)
		for _, l := range p.Lines {
			account := l.Account
			if account == "" {
				account = "(unmapped)"
			}
			fmt.Fprintf(w, "        %-12s Dr %12s  Cr %12s\n", account, model.FormatMinor(l.Debit), model.FormatMinor(l.Credit))
		}
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%d proposals\n", len(proposals))
}

// PrintAdjustmentResult prints per-movement outcomes of an apply
func PrintAdjustmentResult(w io.Writer, result *reconcile.AdjustmentResult) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Adjustments: Succeeded=%d Failed=%d\n", len(result.Succeeded), len(result.Failed))
	for _, s := range result.Succeeded {
		fmt.Fprintf(w, "  + #%d %s -> %s\n", s.BankMovementID, s.Type, s.ReconciliationID)
	}
	if len(result.Failed) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, f := range result.Failed {
			fmt.Fprintf(w, "  - #%d %s: %s\n", f.BankMovementID, f.Kind, f.Message)
		}
	}
}

// PrintHistory prints one page of reconciliations
func PrintHistory(w io.Writer, page *storage.ReconciliationPage) {
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No reconciliations found.")
		return
	}
	for _, r := range page.Items {
		fmt.Fprintf(w, "%s  %s  %-10s %-8s bank #%-6d ledger %v  by %s\n",
			r.ID,
			r.CreatedAt.Local().Format(time.DateTime),
			r.Type,
			r.Status,
			r.BankMovementID,
			r.AccountingMovementIDs,
			r.CreatedBy)
		if r.Status == model.StatusReversed {
			fmt.Fprintf(w, "    reversed by %s: %s\n", r.ReversedBy, r.ReversalReason)
		}
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Showing %d-%d of %d\n", page.Offset+1, page.Offset+len(page.Items), page.TotalCount)
}

// PrintSummary prints reconciliation figures for an account
func PrintSummary(w io.Writer, s *storage.Summary) {
	fmt.Fprintf(w, "Bank movements:   %d total, %d matched, %d unmatched\n", s.BankTotal, s.BankMatched, s.BankUnmatched)
	fmt.Fprintf(w, "Matched amount:   %s\n", model.FormatMinor(s.MatchedAmount))
	fmt.Fprintf(w, "Unmatched amount: %s\n", model.FormatMinor(s.UnmatchedAmount))
	fmt.Fprintf(w, "Ledger lines:     %d total, %d reconciled, %d open\n", s.LedgerTotal, s.LedgerReconciled, s.LedgerUnreconciled)

	types := make([]string, 0, len(s.ActiveByType))
	for t := range s.ActiveByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %-10s %d\n", t, s.ActiveByType[model.ReconciliationType(t)])
	}
	fmt.Fprintf(w, "Reversed:         %d\n", s.Reversed)
	fmt.Fprintf(w, "Match rate:       %.1f%%\n", s.MatchRate*100)
}
