package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response stamped with the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountResponse represents a bank account.
type AccountResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LedgerAccount string `json:"ledger_account"`
}

// AccountListResponse lists bank accounts.
type AccountListResponse struct {
	Accounts []AccountResponse `json:"accounts"`
	Count    int               `json:"count"`
}

// ImportResponse reports the IDs assigned to ingested movements.
type ImportResponse struct {
	IDs   []int64 `json:"ids"`
	Count int     `json:"count"`
}

// BankMovementResponse represents a bank statement line.
type BankMovementResponse struct {
	ID             int64  `json:"id"`
	BankAccountID  string `json:"bank_account_id"`
	Date           string `json:"date"`
	Amount         int64  `json:"amount"`
	AmountDisplay  string `json:"amount_display"`
	Description    string `json:"description"`
	Reference      string `json:"reference,omitempty"`
	RunningBalance *int64 `json:"running_balance,omitempty"`
	Status         string `json:"status"`
}

// AccountingMovementResponse represents a general-ledger line.
type AccountingMovementResponse struct {
	ID            int64  `json:"id"`
	LedgerAccount string `json:"ledger_account"`
	Document      string `json:"document"`
	Date          string `json:"date"`
	Debit         int64  `json:"debit"`
	Credit        int64  `json:"credit"`
	Valor         int64  `json:"valor"`
	ValorDisplay  string `json:"valor_display"`
	Concept       string `json:"concept"`
	Status        string `json:"status"`
}

// UnmatchedResponse is the open work of an account.
type UnmatchedResponse struct {
	BankMovements       []BankMovementResponse       `json:"bank_movements"`
	AccountingMovements []AccountingMovementResponse `json:"accounting_movements"`
	BankCount           int                          `json:"bank_count"`
	AccountingCount     int                          `json:"accounting_count"`
}

// SuggestionResponse is one ranked candidate.
type SuggestionResponse struct {
	Movement   AccountingMovementResponse `json:"movement"`
	Score      float64                    `json:"score"`
	Breakdown  map[string]float64         `json:"breakdown"`
	DateGap    int                        `json:"date_gap"`
	AmountDiff int64                      `json:"amount_diff"`
}

// SuggestionListResponse lists candidates for a bank movement.
type SuggestionListResponse struct {
	BankMovementID int64                `json:"bank_movement_id"`
	Suggestions    []SuggestionResponse `json:"suggestions"`
	Count          int                  `json:"count"`
}

// WarningResponse is a non-blocking preview observation.
type WarningResponse struct {
	Code                 string `json:"code"`
	Message              string `json:"message"`
	AccountingMovementID int64  `json:"accounting_movement_id,omitempty"`
}

// PreviewResponse is the balance of a proposed match.
type PreviewResponse struct {
	BankMovementID        int64             `json:"bank_movement_id"`
	AccountingMovementIDs []int64           `json:"accounting_movement_ids"`
	BankAmount            int64             `json:"bank_amount"`
	AccountingTotal       int64             `json:"accounting_total"`
	Difference            int64             `json:"difference"`
	DifferenceDisplay     string            `json:"difference_display"`
	IsBalanced            bool              `json:"is_balanced"`
	Confidence            float64           `json:"confidence"`
	Warnings              []WarningResponse `json:"warnings"`
}

// ReconciliationResponse represents a reconciliation record.
type ReconciliationResponse struct {
	ID                    string   `json:"id"`
	BankMovementID        int64    `json:"bank_movement_id"`
	AccountingMovementIDs []int64  `json:"accounting_movement_ids"`
	Type                  string   `json:"type"`
	Status                string   `json:"status"`
	Confidence            *float64 `json:"confidence,omitempty"`
	AdjustmentType        string   `json:"adjustment_type,omitempty"`
	Notes                 string   `json:"notes,omitempty"`
	CreatedAt             string   `json:"created_at"`
	CreatedBy             string   `json:"created_by"`
	ReversalReason        string   `json:"reversal_reason,omitempty"`
	ReversedAt            *string  `json:"reversed_at,omitempty"`
	ReversedBy            string   `json:"reversed_by,omitempty"`
}

// ReconciliationListResponse is one page of reconciliation history.
type ReconciliationListResponse struct {
	Reconciliations []ReconciliationResponse `json:"reconciliations"`
	TotalCount      int                      `json:"total_count"`
	Limit           int                      `json:"limit"`
	Offset          int                      `json:"offset"`
}

// ReconciliationDetailResponse is a reconciliation with its movements.
type ReconciliationDetailResponse struct {
	Reconciliation      ReconciliationResponse       `json:"reconciliation"`
	BankMovement        BankMovementResponse         `json:"bank_movement"`
	AccountingMovements []AccountingMovementResponse `json:"accounting_movements"`
}

// AutoMatchResponse reports a finished automatic run.
type AutoMatchResponse struct {
	RunID             string   `json:"run_id"`
	Applied           int      `json:"applied"`
	Skipped           int      `json:"skipped"`
	ReconciliationIDs []string `json:"reconciliation_ids"`
}

// EntryLineResponse is one proposed ledger line.
type EntryLineResponse struct {
	Account string `json:"account"`
	Debit   int64  `json:"debit"`
	Credit  int64  `json:"credit"`
	Concept string `json:"concept"`
}

// AdjustmentProposalResponse is a detected correcting entry.
type AdjustmentProposalResponse struct {
	BankMovement     BankMovementResponse `json:"bank_movement"`
	Type             string               `json:"type"`
	Rule             string               `json:"rule"`
	Description      string               `json:"description"`
	Lines            []EntryLineResponse  `json:"lines"`
	Total            int64                `json:"total"`
	TotalDisplay     string               `json:"total_display"`
	RequiresApproval bool                 `json:"requires_approval"`
	MissingMappings  []string             `json:"missing_mappings,omitempty"`
}

// AdjustmentListResponse lists detected adjustments.
type AdjustmentListResponse struct {
	Proposals []AdjustmentProposalResponse `json:"proposals"`
	Count     int                          `json:"count"`
}

// AdjustmentOutcomeResponse is one applied adjustment.
type AdjustmentOutcomeResponse struct {
	BankMovementID        int64   `json:"bank_movement_id"`
	ReconciliationID      string  `json:"reconciliation_id"`
	Type                  string  `json:"type"`
	AccountingMovementIDs []int64 `json:"accounting_movement_ids"`
}

// AdjustmentFailureResponse is one adjustment that was not applied.
type AdjustmentFailureResponse struct {
	BankMovementID int64  `json:"bank_movement_id"`
	Code           string `json:"code"`
	Message        string `json:"message"`
}

// ApplyAdjustmentsResponse reports each adjustment independently.
type ApplyAdjustmentsResponse struct {
	Succeeded []AdjustmentOutcomeResponse `json:"succeeded"`
	Failed    []AdjustmentFailureResponse `json:"failed"`
}

// SummaryResponse is the reconciliation status of an account.
type SummaryResponse struct {
	BankAccountID          string         `json:"bank_account_id"`
	BankTotal              int            `json:"bank_total"`
	BankMatched            int            `json:"bank_matched"`
	BankUnmatched          int            `json:"bank_unmatched"`
	MatchedAmount          int64          `json:"matched_amount"`
	MatchedAmountDisplay   string         `json:"matched_amount_display"`
	UnmatchedAmount        int64          `json:"unmatched_amount"`
	UnmatchedAmountDisplay string         `json:"unmatched_amount_display"`
	LedgerTotal            int            `json:"ledger_total"`
	LedgerReconciled       int            `json:"ledger_reconciled"`
	LedgerUnreconciled     int            `json:"ledger_unreconciled"`
	ActiveByType           map[string]int `json:"active_by_type"`
	Reversed               int            `json:"reversed"`
	MatchRate              float64        `json:"match_rate"`
}

// MatchingRunResponse represents an automatic matching run.
type MatchingRunResponse struct {
	ID            string  `json:"id"`
	BankAccountID string  `json:"bank_account_id"`
	From          string  `json:"from,omitempty"`
	To            string  `json:"to,omitempty"`
	StartedAt     string  `json:"started_at"`
	CompletedAt   *string `json:"completed_at,omitempty"`
	StartedBy     string  `json:"started_by"`
	Applied       int     `json:"applied"`
	Skipped       int     `json:"skipped"`
	Status        string  `json:"status"`
}

// MatchingRunListResponse lists matching runs, newest first.
type MatchingRunListResponse struct {
	Runs  []MatchingRunResponse `json:"runs"`
	Count int                   `json:"count"`
}
