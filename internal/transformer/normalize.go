// Package transformer turns raw CSV records into typed companies and decides
// which records are admissible for persistence.
//
// Every function here is pure and total: malformed input degrades to the
// absent (nil) form of the target field and never surfaces as an error.
package transformer

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// nbspReplacer folds the no-break space variants seen in register exports,
// including the mis-decoded "\u00c2\u00a0" pair.
var nbspReplacer = strings.NewReplacer("\u00c2\u00a0", " ", "\u00a0", " ", "\u202f", " ", "\u2007", " ")

// NormalizeText trims surrounding whitespace, folds no-break spaces and
// returns the NFC form of s. Invalid UTF-8 is returned trimmed but otherwise
// untouched.
func NormalizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if !utf8.ValidString(s) {
		return s
	}
	if strings.ContainsAny(s, "\u00a0\u202f\u2007") {
		s = strings.TrimSpace(nbspReplacer.Replace(s))
	}
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}

// OptString returns nil for empty or whitespace-only text so that "not
// provided" stays distinct from a provided value.
func OptString(s string) *string {
	s = NormalizeText(s)
	if s == "" {
		return nil
	}
	return &s
}
