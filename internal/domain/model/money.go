package model

import "github.com/shopspring/decimal"

// MinorUnitExponent is the number of decimals in a minor currency unit.
const MinorUnitExponent = 2

// FormatMinor renders a minor-unit amount as a fixed-point string, e.g.
// -15000 becomes "-150.00".
func FormatMinor(amount int64) string {
	return decimal.New(amount, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}

// ParseMinor parses a decimal string into minor units. It rejects values
// with more precision than a minor unit can hold.
func ParseMinor(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, Invalidf("amount %q: %v", s, err)
	}
	scaled := d.Shift(MinorUnitExponent)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, Invalidf("amount %q has more than %d decimals", s, MinorUnitExponent)
	}
	return scaled.IntPart(), nil
}

// RelativeDiff returns |a-b| / |a| as a float, or 1 when a is zero and the
// amounts differ.
func RelativeDiff(a, b int64) float64 {
	if a == b {
		return 0
	}
	if a == 0 {
		return 1
	}
	diff := decimal.NewFromInt(a - b).Abs()
	return diff.Div(decimal.NewFromInt(a).Abs()).InexactFloat64()
}

// Abs returns the absolute value of a minor-unit amount.
func Abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
