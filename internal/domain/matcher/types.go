package matcher

import "github.com/bankrecon/bankrecon/internal/domain/model"

// Weights are the fixed weights of the default scorers.
type Weights struct {
	Amount float64 `yaml:"amount"`
	Date   float64 `yaml:"date"`
	Text   float64 `yaml:"text"`
}

// Config holds matcher configuration
type Config struct {
	AmountTolerance           float64 `yaml:"amount_tolerance"`             // Relative band for near matches (default: 0.05)
	NearMatchCeiling          float64 `yaml:"near_match_ceiling"`           // Best amount score a non-exact match can get (default: 0.8)
	DateWindowDays            int     `yaml:"date_window_days"`             // Date score reaches zero beyond this (default: 5)
	SanityWindowDays          int     `yaml:"sanity_window_days"`           // Candidate pool and preview warning window (default: 30)
	AutoThreshold             float64 `yaml:"auto_threshold"`               // Minimum score for automatic apply (default: 0.9)
	ManualMultiLineConfidence float64 `yaml:"manual_multi_line_confidence"` // Confidence reported for multi-line previews (default: 0.5)
	SuggestionLimit           int     `yaml:"suggestion_limit"`             // Default number of suggestions (default: 10)
	Weights                   Weights `yaml:"weights"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		AmountTolerance:           0.05,
		NearMatchCeiling:          0.8,
		DateWindowDays:            5,
		SanityWindowDays:          30,
		AutoThreshold:             0.9,
		ManualMultiLineConfidence: 0.5,
		SuggestionLimit:           10,
		Weights: Weights{
			Amount: 0.6,
			Date:   0.3,
			Text:   0.1,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.AmountTolerance <= 0 {
		c.AmountTolerance = d.AmountTolerance
	}
	if c.NearMatchCeiling <= 0 {
		c.NearMatchCeiling = d.NearMatchCeiling
	}
	if c.DateWindowDays <= 0 {
		c.DateWindowDays = d.DateWindowDays
	}
	if c.SanityWindowDays <= 0 {
		c.SanityWindowDays = d.SanityWindowDays
	}
	if c.AutoThreshold <= 0 {
		c.AutoThreshold = d.AutoThreshold
	}
	if c.ManualMultiLineConfidence <= 0 {
		c.ManualMultiLineConfidence = d.ManualMultiLineConfidence
	}
	if c.SuggestionLimit <= 0 {
		c.SuggestionLimit = d.SuggestionLimit
	}
	if c.Weights == (Weights{}) {
		c.Weights = d.Weights
	}
	return c
}

// ScoredCandidate is one accounting movement ranked against a bank movement.
type ScoredCandidate struct {
	Movement   *model.AccountingMovement `json:"movement"`
	Score      float64                   `json:"score"`
	Breakdown  map[string]float64        `json:"breakdown"`   // Unweighted score per scorer
	DateGap    int                       `json:"date_gap"`    // Days between the two dates
	AmountDiff int64                     `json:"amount_diff"` // bank amount - valor
}
