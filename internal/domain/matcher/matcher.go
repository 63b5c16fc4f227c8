// Package matcher scores accounting movements against a bank movement and
// computes match previews.
//
// Confidence is a weighted sum of independent scorers clipped to [0,1]:
//   - amount: exact equality scores 1, near matches are penalized by their
//     relative difference, anything outside the tolerance band scores 0
//   - date: decays with the gap in days, zero beyond the window
//   - text: similarity of description and concept
//
// Example usage:
//
//	m := matcher.NewMatcher(matcher.DefaultConfig())
//	candidates := m.Rank(bank, unreconciled, 10)
//	if len(candidates) > 0 && m.IsAutoMatch(bank, candidates[0]) {
//		// apply candidates[0]
//	}
package matcher

import (
	"sort"

	"github.com/bankrecon/bankrecon/internal/domain/model"
)

// Matcher ranks accounting movements for a bank movement.
type Matcher struct {
	config  Config
	scorers []Scorer
}

// NewMatcher creates a matcher with the default scorers.
func NewMatcher(config Config) *Matcher {
	config = config.WithDefaults()
	return &Matcher{
		config:  config,
		scorers: DefaultScorers(config),
	}
}

// NewMatcherWithScorers creates a matcher with a custom scorer list.
func NewMatcherWithScorers(config Config, scorers ...Scorer) *Matcher {
	return &Matcher{
		config:  config.WithDefaults(),
		scorers: scorers,
	}
}

// Config returns the matcher configuration.
func (m *Matcher) Config() Config {
	return m.config
}

// Score rates a single pair.
func (m *Matcher) Score(bank *model.BankMovement, acct *model.AccountingMovement) ScoredCandidate {
	breakdown := make(map[string]float64, len(m.scorers))
	var total float64
	for _, s := range m.scorers {
		v := s.Score(bank, acct)
		breakdown[s.Name()] = v
		total += s.Weight() * v
	}
	return ScoredCandidate{
		Movement:   acct,
		Score:      clip01(total),
		Breakdown:  breakdown,
		DateGap:    model.DaysBetween(bank.Date, acct.Date),
		AmountDiff: bank.Amount - acct.Valor(),
	}
}

// Rank scores every unreconciled candidate and returns those with a
// positive score, best first. Ties go to the nearer date, then the
// smaller id. A limit of zero or less returns all of them.
func (m *Matcher) Rank(bank *model.BankMovement, candidates []*model.AccountingMovement, limit int) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, acct := range candidates {
		if !acct.IsUnreconciled() {
			continue
		}
		c := m.Score(bank, acct)
		if c.Score <= 0 {
			continue
		}
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DateGap != b.DateGap {
			return a.DateGap < b.DateGap
		}
		return a.Movement.ID < b.Movement.ID
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// IsAutoMatch reports whether a candidate may be applied without review:
// its score meets the automatic threshold and the amounts are equal.
func (m *Matcher) IsAutoMatch(bank *model.BankMovement, c ScoredCandidate) bool {
	return c.Score >= m.config.AutoThreshold && bank.Amount == c.Movement.Valor()
}

func clip01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
