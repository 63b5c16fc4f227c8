package matcher

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/bankrecon/bankrecon/internal/domain/model"
	"github.com/bankrecon/bankrecon/internal/domain/textnorm"
)

// Scorer rates one signal of how likely a bank movement and an accounting
// movement are the same transaction. Score returns a value in [0,1].
type Scorer interface {
	Name() string
	Weight() float64
	Score(bank *model.BankMovement, acct *model.AccountingMovement) float64
}

// DefaultScorers returns the amount, date and text scorers weighted per cfg.
func DefaultScorers(cfg Config) []Scorer {
	return []Scorer{
		AmountScorer{Tolerance: cfg.AmountTolerance, Ceiling: cfg.NearMatchCeiling, W: cfg.Weights.Amount},
		DateScorer{WindowDays: cfg.DateWindowDays, W: cfg.Weights.Date},
		TextScorer{W: cfg.Weights.Text},
	}
}

// AmountScorer gives 1 for an exact amount and a penalized score for
// amounts within Tolerance (relative to the bank amount).
type AmountScorer struct {
	Tolerance float64
	Ceiling   float64
	W         float64
}

func (s AmountScorer) Name() string { return "amount" }
func (s AmountScorer) Weight() float64 { return s.W }

func (s AmountScorer) Score(bank *model.BankMovement, acct *model.AccountingMovement) float64 {
	valor := acct.Valor()
	if bank.Amount == valor {
		return 1
	}
	// Opposite directions never match.
	if (bank.Amount < 0) != (valor < 0) {
		return 0
	}
	rel := model.RelativeDiff(bank.Amount, valor)
	if s.Tolerance <= 0 || rel > s.Tolerance {
		return 0
	}
	return s.Ceiling * (1 - rel/s.Tolerance)
}

// DateScorer decays linearly with the day gap and is zero past WindowDays.
type DateScorer struct {
	WindowDays int
	W          float64
}

func (s DateScorer) Name() string { return "date" }
func (s DateScorer) Weight() float64 { return s.W }

func (s DateScorer) Score(bank *model.BankMovement, acct *model.AccountingMovement) float64 {
	gap := model.DaysBetween(bank.Date, acct.Date)
	if gap > s.WindowDays {
		return 0
	}
	return 1 - float64(gap)/float64(s.WindowDays+1)
}

// TextScorer compares the bank description with the ledger concept. It
// takes the better of token overlap and normalized edit distance.
type TextScorer struct {
	W float64
}

func (s TextScorer) Name() string { return "text" }
func (s TextScorer) Weight() float64 { return s.W }

func (s TextScorer) Score(bank *model.BankMovement, acct *model.AccountingMovement) float64 {
	return TextSimilarity(bank.Description, acct.Concept)
}

// TextSimilarity returns a [0,1] similarity of two free-text strings.
func TextSimilarity(a, b string) float64 {
	na, nb := textnorm.Normalize(a), textnorm.Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	overlap := tokenOverlap(strings.Fields(na), strings.Fields(nb))
	ra, rb := []rune(na), []rune(nb)
	// DefaultOptions costs a substitution as 2, so the distance is bounded
	// by the combined length.
	distance := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptions)
	edit := 1 - float64(distance)/float64(len(ra)+len(rb))
	return max(overlap, edit)
}

// tokenOverlap is |A∩B| / |A∪B| over distinct tokens.
func tokenOverlap(a, b []string) float64 {
	set := make(map[string]int, len(a)+len(b))
	for _, t := range a {
		set[t] |= 1
	}
	for _, t := range b {
		set[t] |= 2
	}
	var both int
	for _, v := range set {
		if v == 3 {
			both++
		}
	}
	if len(set) == 0 {
		return 0
	}
	return float64(both) / float64(len(set))
}
