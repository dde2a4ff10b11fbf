// internal/intent/normalize.go
package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases a message and strips diacritics so "Reservación" and
// "reservacion" score identically.
func Normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	out, _, err := transform.String(stripAccents, lowered)
	if err != nil {
		return lowered
	}
	return out
}

// Tokenize splits a normalized message into words, dropping punctuation.
func Tokenize(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// containsWord reports whether token appears as a whole word in the token
// list. Single-word signals match on word boundaries; multi-word phrases use
// substring matching instead.
func containsWord(tokens []string, token string) bool {
	for _, t := range tokens {
		if t == token {
			return true
		}
	}
	return false
}
