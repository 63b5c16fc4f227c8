package matcher

import (
	"fmt"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// Warning codes attached to a preview.
const (
	WarnUnbalanced     = "unbalanced"
	WarnOutsideWindow  = "outside_date_window"
	WarnLedgerMismatch = "ledger_account_mismatch"
)

// Warning is a non-blocking observation about a proposed match.
type Warning struct {
	Code                 string `json:"code"`
	Message              string `json:"message"`
	AccountingMovementID int64  `json:"accounting_movement_id,omitempty"`
}

// MatchPreview is the signed outcome of a proposed match before commit.
type MatchPreview struct {
	BankMovementID        int64     `json:"bank_movement_id"`
	AccountingMovementIDs []int64   `json:"accounting_movement_ids"`
	BankAmount            int64     `json:"bank_amount"`
	AccountingTotal       int64     `json:"accounting_total"`
	Difference            int64     `json:"difference"`
	IsBalanced            bool      `json:"is_balanced"`
	Confidence            float64   `json:"confidence"`
	Warnings              []Warning `json:"warnings"`
}

// Preview computes the balance of matching bank against lines. The caller
// is responsible for checking that the movements are still open.
// ledgerAccount is the bank's ledger account; lines posted elsewhere get a
// warning.
func (m *Matcher) Preview(bank *model.BankMovement, lines []*model.AccountingMovement, ledgerAccount string) MatchPreview {
	p := MatchPreview{
		BankMovementID:        bank.ID,
		AccountingMovementIDs: make([]int64, 0, len(lines)),
		BankAmount:            bank.Amount,
		Warnings:              []Warning{},
	}

	for _, acct := range lines {
		p.AccountingMovementIDs = append(p.AccountingMovementIDs, acct.ID)
		p.AccountingTotal += acct.Valor()

		if gap := model.DaysBetween(bank.Date, acct.Date); gap > m.config.SanityWindowDays {
			p.Warnings = append(p.Warnings, Warning{
				Code:                 WarnOutsideWindow,
				Message:              fmt.Sprintf("accounting movement %d is %d days from the bank date", acct.ID, gap),
				AccountingMovementID: acct.ID,
			})
		}
		if ledgerAccount != "" && acct.LedgerAccount != ledgerAccount {
			p.Warnings = append(p.Warnings, Warning{
				Code:                 WarnLedgerMismatch,
				Message:              fmt.Sprintf("accounting movement %d posts to %s, not %s", acct.ID, acct.LedgerAccount, ledgerAccount),
				AccountingMovementID: acct.ID,
			})
		}
	}

	p.Difference = p.BankAmount - p.AccountingTotal
	p.IsBalanced = p.Difference == 0
	if !p.IsBalanced {
		p.Warnings = append(p.Warnings, Warning{
			Code:    WarnUnbalanced,
			Message: fmt.Sprintf("difference of %s between bank and ledger", model.FormatMinor(p.Difference)),
		})
	}

	p.Confidence = m.previewConfidence(bank, lines)
	return p
}

// previewConfidence is the pair score for a single line and the configured
// constant for multi-line selections.
func (m *Matcher) previewConfidence(bank *model.BankMovement, lines []*model.AccountingMovement) float64 {
	switch len(lines) {
	case 0:
		return 0
	case 1:
		return m.Score(bank, lines[0]).Score
	}
	return m.config.ManualMultiLineConfidence
}
