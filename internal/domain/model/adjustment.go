package model

// AdjustmentType classifies a bank-only item that needs a correcting entry.
type AdjustmentType string

const (
	AdjustmentCommission AdjustmentType = "COMMISSION"
	AdjustmentInterest   AdjustmentType = "INTEREST"
	AdjustmentDebitNote  AdjustmentType = "DEBIT_NOTE"
	AdjustmentCreditNote AdjustmentType = "CREDIT_NOTE"
)

// EntryLine is one proposed ledger line. An empty Account means the
// mapping for that line was not configured.
type EntryLine struct {
	Account string `json:"account"`
	Debit   int64  `json:"debit"`
	Credit  int64  `json:"credit"`
	Concept string `json:"concept"`
}

// Valor is the signed value of the line, debit minus credit.
func (l EntryLine) Valor() int64 {
	return l.Debit - l.Credit
}

// AdjustmentProposal is a correcting entry proposed for one bank movement.
// It is not persisted until applied.
type AdjustmentProposal struct {
	BankMovement     BankMovement   `json:"bank_movement"`
	Type             AdjustmentType `json:"type"`
	Rule             string         `json:"rule"`
	Description      string         `json:"description"`
	Lines            []EntryLine    `json:"lines"`
	Total            int64          `json:"total"`
	RequiresApproval bool           `json:"requires_approval"`
	MissingMappings  []string       `json:"missing_mappings,omitempty"`
}

// Balanced reports whether the proposed lines sum to zero.
func (p AdjustmentProposal) Balanced() bool {
	var sum int64
	for _, l := range p.Lines {
		sum += l.Valor()
	}
	return sum == 0
}

// HasMissingAccount reports whether any line lacks an account.
func (p AdjustmentProposal) HasMissingAccount() bool {
	for _, l := range p.Lines {
		if l.Account == "" {
			return true
		}
	}
	return false
}
