package model

import "time"

// ReconciliationType records how a reconciliation came to exist.
type ReconciliationType string

const (
	TypeAuto       ReconciliationType = "AUTO"
	TypeManual     ReconciliationType = "MANUAL"
	TypeAdjustment ReconciliationType = "ADJUSTMENT"
)

// Valid reports whether t is a known type.
func (t ReconciliationType) Valid() bool {
	switch t {
	case TypeAuto, TypeManual, TypeAdjustment:
		return true
	}
	return false
}

// ReconciliationStatus is ACTIVE until reversed. Reversal is terminal.
type ReconciliationStatus string

const (
	StatusActive   ReconciliationStatus = "ACTIVE"
	StatusReversed ReconciliationStatus = "REVERSED"
)

// Valid reports whether s is a known status.
func (s ReconciliationStatus) Valid() bool {
	return s == StatusActive || s == StatusReversed
}

// Reconciliation links one bank movement to one or more accounting
// movements. Rows are never deleted; reversal flips Status and records
// who and why.
type Reconciliation struct {
	ID                    string               `json:"id"`
	BankMovementID        int64                `json:"bank_movement_id"`
	AccountingMovementIDs []int64              `json:"accounting_movement_ids"`
	Type                  ReconciliationType   `json:"type"`
	Status                ReconciliationStatus `json:"status"`
	Confidence            *float64             `json:"confidence,omitempty"`
	AdjustmentType        AdjustmentType       `json:"adjustment_type,omitempty"`
	Notes                 string               `json:"notes,omitempty"`
	CreatedAt             time.Time            `json:"created_at"`
	CreatedBy             string               `json:"created_by"`
	ReversalReason        string               `json:"reversal_reason,omitempty"`
	ReversedAt            *time.Time           `json:"reversed_at,omitempty"`
	ReversedBy            string               `json:"reversed_by,omitempty"`
}

// IsActive reports whether the reconciliation still holds its movements.
func (r *Reconciliation) IsActive() bool {
	return r.Status == StatusActive
}

// ReconciliationDetail is a reconciliation together with the movements it links.
type ReconciliationDetail struct {
	Reconciliation      *Reconciliation       `json:"reconciliation"`
	BankMovement        *BankMovement         `json:"bank_movement"`
	AccountingMovements []*AccountingMovement `json:"accounting_movements"`
}

// MatchingRun records one automatic matching pass over an account.
type MatchingRun struct {
	ID            string     `json:"id"`
	BankAccountID string     `json:"bank_account_id"`
	From          time.Time  `json:"from"`
	To            time.Time  `json:"to"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	StartedBy     string     `json:"started_by"`
	Applied       int        `json:"applied"`
	Skipped       int        `json:"skipped"`
	Status        string     `json:"status"`
}

// Matching run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)
