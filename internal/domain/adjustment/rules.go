// Package adjustment detects recurring bank-only items (commissions,
// interest, debit and credit notes) and proposes the ledger entries that
// would account for them. Detection never posts anything.
package adjustment

import (
	"github.com/bankrecon/bankrecon/internal/domain/model"
	"github.com/bankrecon/bankrecon/internal/domain/textnorm"
)

// Sign restricts a rule to inflows or outflows.
type Sign string

const (
	SignAny      Sign = "any"
	SignNegative Sign = "negative"
	SignPositive Sign = "positive"
)

// Account mapping keys a rule can post to.
const (
	AccountBankCharges    = "bank_charges"
	AccountInterestIncome = "interest_income"
	AccountDebitNote      = "debit_note"
	AccountCreditNote     = "credit_note"
)

// Rule classifies a bank movement by sign, magnitude and description
// keywords. A zero MaxAbs means no upper bound; an empty Sign means any.
type Rule struct {
	Name           string               `yaml:"name"`
	Type           model.AdjustmentType `yaml:"type"`
	Sign           Sign                 `yaml:"sign"`
	Keywords       []string             `yaml:"keywords"`
	MinAbs         int64                `yaml:"min_abs"`
	MaxAbs         int64                `yaml:"max_abs"`
	AccountKey     string               `yaml:"account"`
	RequiresReview bool                 `yaml:"requires_review"`
}

// Matches reports whether the rule's predicate holds for b.
func (r Rule) Matches(b *model.BankMovement) bool {
	switch r.Sign {
	case SignNegative:
		if b.Amount >= 0 {
			return false
		}
	case SignPositive:
		if b.Amount <= 0 {
			return false
		}
	}

	abs := model.Abs(b.Amount)
	if abs < r.MinAbs {
		return false
	}
	if r.MaxAbs > 0 && abs > r.MaxAbs {
		return false
	}

	for _, kw := range r.Keywords {
		if textnorm.ContainsPhrase(b.Description, kw) {
			return true
		}
	}
	return false
}

// Validate checks the rule is usable.
func (r Rule) Validate() error {
	switch {
	case r.Name == "":
		return model.Invalidf("adjustment rule: name is required")
	case len(r.Keywords) == 0:
		return model.Invalidf("adjustment rule %q: at least one keyword is required", r.Name)
	case r.AccountKey == "":
		return model.Invalidf("adjustment rule %q: account is required", r.Name)
	case r.MaxAbs > 0 && r.MaxAbs < r.MinAbs:
		return model.Invalidf("adjustment rule %q: max_abs below min_abs", r.Name)
	}
	switch r.Type {
	case model.AdjustmentCommission, model.AdjustmentInterest, model.AdjustmentDebitNote, model.AdjustmentCreditNote:
	default:
		return model.Invalidf("adjustment rule %q: unknown type %q", r.Name, r.Type)
	}
	switch r.Sign {
	case SignAny, SignNegative, SignPositive, "":
	default:
		return model.Invalidf("adjustment rule %q: unknown sign %q", r.Name, r.Sign)
	}
	return nil
}

// DefaultRules returns the built-in rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "bank-commission",
			Type:       model.AdjustmentCommission,
			Sign:       SignNegative,
			Keywords:   []string{"COMISION", "COMISIONES", "CUOTA MANEJO", "CUOTA DE MANEJO", "MANEJO CTA", "CHEQUERA", "GMF", "4X1000", "GRAVAMEN"},
			AccountKey: AccountBankCharges,
		},
		{
			Name:       "interest-earned",
			Type:       model.AdjustmentInterest,
			Sign:       SignPositive,
			Keywords:   []string{"INTERES", "INTERESES", "RENDIMIENTO", "RENDIMIENTOS", "ABONO INTERESES"},
			AccountKey: AccountInterestIncome,
		},
		{
			Name:           "debit-note",
			Type:           model.AdjustmentDebitNote,
			Sign:           SignNegative,
			Keywords:       []string{"NOTA DEBITO", "ND"},
			AccountKey:     AccountDebitNote,
			RequiresReview: true,
		},
		{
			Name:           "credit-note",
			Type:           model.AdjustmentCreditNote,
			Sign:           SignPositive,
			Keywords:       []string{"NOTA CREDITO", "NC"},
			AccountKey:     AccountCreditNote,
			RequiresReview: true,
		},
	}
}
