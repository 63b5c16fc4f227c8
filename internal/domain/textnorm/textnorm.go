// Package textnorm folds bank and ledger free text into a comparable form:
// accents removed, upper case, punctuation collapsed to single spaces.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize returns s without diacritics, upper-cased, with every run of
// non-alphanumeric characters replaced by one space.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range strings.ToUpper(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens splits normalized text into words.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// ContainsPhrase reports whether the normalized text contains phrase as a
// whole-word sequence.
func ContainsPhrase(text, phrase string) bool {
	t := " " + Normalize(text) + " "
	p := Normalize(phrase)
	if p == "" {
		return false
	}
	return strings.Contains(t, " "+p+" ")
}
