package storage

import (
	"time"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// Pagination defaults for list queries
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// BankFilter selects bank movements
type BankFilter struct {
	BankAccountID string
	Period        model.DateRange
	Status        model.BankStatus // Empty = all
}

// LedgerFilter selects accounting movements
type LedgerFilter struct {
	LedgerAccount string
	Period        model.DateRange
	Status        model.LedgerStatus // Empty = all
}

// ReconciliationFilter defines filters for listing reconciliations
type ReconciliationFilter struct {
	BankAccountID string
	Period        model.DateRange            // Compared against the creation date
	Type          model.ReconciliationType   // Empty = all
	Status        model.ReconciliationStatus // Empty = all
	Limit         int                        // Max results (0 = default 50)
	Offset        int                        // Pagination offset
}

// Normalize applies the default and maximum page size.
func (f ReconciliationFilter) Normalize() ReconciliationFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ReconciliationPage contains paginated reconciliation results
type ReconciliationPage struct {
	Items      []*model.Reconciliation `json:"items"`
	TotalCount int                     `json:"total_count"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
}

// Commit is one atomic reconciliation write.
//
// Reconciliation.AccountingMovementIDs lists existing ledger lines to link.
// NewLinked lines are inserted as RECONCILED and appended to the links;
// NewUnlinked lines (adjustment counterparts) are inserted UNRECONCILED.
// IDs of inserted lines are set on success.
type Commit struct {
	Reconciliation *model.Reconciliation
	NewLinked      []*model.AccountingMovement
	NewUnlinked    []*model.AccountingMovement
}

// Reversal describes a reversal request
type Reversal struct {
	ReconciliationID string
	Reason           string
	By               string
	At               time.Time
}

// Summary contains aggregate reconciliation figures for one account and period
type Summary struct {
	BankAccountID      string                           `json:"bank_account_id"`
	BankTotal          int                              `json:"bank_total"`
	BankMatched        int                              `json:"bank_matched"`
	BankUnmatched      int                              `json:"bank_unmatched"`
	MatchedAmount      int64                            `json:"matched_amount"`
	UnmatchedAmount    int64                            `json:"unmatched_amount"`
	LedgerTotal        int                              `json:"ledger_total"`
	LedgerReconciled   int                              `json:"ledger_reconciled"`
	LedgerUnreconciled int                              `json:"ledger_unreconciled"`
	ActiveByType       map[model.ReconciliationType]int `json:"active_by_type"`
	Reversed           int                              `json:"reversed"`
	MatchRate          float64                          `json:"match_rate"`
}

// computeRate fills MatchRate from the bank counts.
func (s *Summary) computeRate() {
	if s.BankTotal == 0 {
		s.MatchRate = 0
		return
	}
	s.MatchRate = float64(s.BankMatched) / float64(s.BankTotal)
}

const dateLayout = "2006-01-02"

func formatDate(t time.Time) string {
	return model.TruncateDay(t).Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}
