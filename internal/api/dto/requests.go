package dto

// Dates on the wire are calendar days ("2006-01-02"). Amounts are signed
// integers in minor currency units.

// RegisterAccountRequest creates or updates a bank account.
type RegisterAccountRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	LedgerAccount string `json:"ledger_account"`
}

// BankMovementInput is one parsed statement line.
type BankMovementInput struct {
	Date           string `json:"date"`
	Amount         int64  `json:"amount"`
	Description    string `json:"description"`
	Reference      string `json:"reference,omitempty"`
	RunningBalance *int64 `json:"running_balance,omitempty"`
}

// ImportBankMovementsRequest is the body of a statement ingestion.
type ImportBankMovementsRequest struct {
	Movements []BankMovementInput `json:"movements"`
}

// AccountingMovementInput is one general-ledger line.
type AccountingMovementInput struct {
	LedgerAccount string `json:"ledger_account"`
	Document      string `json:"document"`
	Date          string `json:"date"`
	Debit         int64  `json:"debit"`
	Credit        int64  `json:"credit"`
	Concept       string `json:"concept"`
}

// ImportAccountingMovementsRequest is the body of a ledger ingestion.
type ImportAccountingMovementsRequest struct {
	Movements []AccountingMovementInput `json:"movements"`
}

// PreviewRequest selects a proposed match.
type PreviewRequest struct {
	BankMovementID        int64   `json:"bank_movement_id"`
	AccountingMovementIDs []int64 `json:"accounting_movement_ids"`
}

// ApplyMatchRequest commits a manual match.
type ApplyMatchRequest struct {
	BankMovementID        int64   `json:"bank_movement_id"`
	AccountingMovementIDs []int64 `json:"accounting_movement_ids"`
	Notes                 string  `json:"notes"`
	User                  string  `json:"user"`
	AllowUnbalanced       bool    `json:"allow_unbalanced"`
}

// AutoMatchRequest starts an automatic run. Empty dates are open bounds.
type AutoMatchRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	User string `json:"user"`
}

// ReverseRequest reverses an active reconciliation.
type ReverseRequest struct {
	Reason string `json:"reason"`
	User   string `json:"user"`
}

// ApplyAdjustmentsRequest applies detected adjustments by bank movement.
type ApplyAdjustmentsRequest struct {
	BankMovementIDs []int64 `json:"bank_movement_ids"`
	Notes           string  `json:"notes"`
	User            string  `json:"user"`
}

// Default page sizes.
const (
	DefaultHistoryLimit = 50
	DefaultRunListLimit = 20
)
