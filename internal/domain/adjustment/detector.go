package adjustment

import (
	"fmt"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// AccountMapping maps rule account keys to ledger account codes for one
// bank account, plus the bank's own ledger account.
type AccountMapping struct {
	BankLedgerAccount string            `yaml:"bank_ledger_account"`
	Accounts          map[string]string `yaml:"accounts"`
}

// Account returns the ledger account for key, or "".
func (m AccountMapping) Account(key string) string {
	if m.Accounts == nil {
		return ""
	}
	return m.Accounts[key]
}

// Detector classifies bank movements against an ordered rule list.
type Detector struct {
	rules []Rule
}

// NewDetector creates a detector. An empty rule list uses DefaultRules.
func NewDetector(rules []Rule) (*Detector, error) {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}
	return &Detector{rules: rules}, nil
}

// Rules returns the rules in evaluation order.
func (d *Detector) Rules() []Rule {
	return d.rules
}

// Classify returns the first rule matching b.
func (d *Detector) Classify(b *model.BankMovement) (Rule, bool) {
	for _, r := range d.rules {
		if r.Matches(b) {
			return r, true
		}
	}
	return Rule{}, false
}

// Detect builds a proposal for every unmatched movement that matches a
// rule. Movements matching no rule are left out.
func (d *Detector) Detect(movements []*model.BankMovement, mapping AccountMapping) []model.AdjustmentProposal {
	proposals := make([]model.AdjustmentProposal, 0)
	for _, b := range movements {
		if !b.IsUnmatched() {
			continue
		}
		rule, ok := d.Classify(b)
		if !ok {
			continue
		}
		proposals = append(proposals, Build(rule, b, mapping))
	}
	return proposals
}

// Build creates the double-entry proposal for b under rule. Outflows debit
// the mapped account and credit the bank ledger account; inflows do the
// reverse. Unmapped accounts are left empty and flag the proposal for
// approval.
func Build(rule Rule, b *model.BankMovement, mapping AccountMapping) model.AdjustmentProposal {
	total := model.Abs(b.Amount)
	counterpart := mapping.Account(rule.AccountKey)
	bankAccount := mapping.BankLedgerAccount

	p := model.AdjustmentProposal{
		BankMovement:     *b,
		Type:             rule.Type,
		Rule:             rule.Name,
		Description:      fmt.Sprintf("%s %s: %s", rule.Type, model.FormatMinor(total), b.Description),
		Total:            total,
		RequiresApproval: rule.RequiresReview,
	}

	counterLine := model.EntryLine{Account: counterpart, Concept: b.Description}
	bankLine := model.EntryLine{Account: bankAccount, Concept: b.Description}
	if b.Amount < 0 {
		counterLine.Debit = total
		bankLine.Credit = total
	} else {
		bankLine.Debit = total
		counterLine.Credit = total
	}
	p.Lines = []model.EntryLine{counterLine, bankLine}

	if counterpart == "" {
		p.MissingMappings = append(p.MissingMappings, rule.AccountKey)
	}
	if bankAccount == "" {
		p.MissingMappings = append(p.MissingMappings, "bank_ledger_account")
	}
	if len(p.MissingMappings) > 0 {
		p.RequiresApproval = true
	}
	return p
}
