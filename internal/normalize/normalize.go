// Package normalize folds text for diacritic-insensitive matching and parses
// the date formats found on the harvested portals.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold decomposes text, strips combining marks and lower-cases the result,
// so "Balanço" and "balanco" fold to the same string.
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}

// MatchesFilter reports whether title contains filter after folding both.
// An empty filter matches everything.
func MatchesFilter(title, filter string) bool {
	needle := Fold(strings.TrimSpace(filter))
	if needle == "" {
		return true
	}
	return strings.Contains(Fold(title), needle)
}

// ShouldExclude is the negation of MatchesFilter.
func ShouldExclude(title, filter string) bool {
	return !MatchesFilter(title, filter)
}
