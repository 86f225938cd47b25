// Package slug turns arbitrary display names into filesystem and URL safe tokens.
package slug

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize lowercases name and keeps only ASCII letters and digits.
// Runs of whitespace and hyphens become a single hyphen and separators at
// either end are dropped. Every other character is removed without leaving
// a separator behind, so "My Song!!" becomes "my-song".
//
// The result may be empty; callers append their own suffix.
func Normalize(name string) string {
	// Casers are stateful, never share one across goroutines.
	lower := cases.Lower(language.Und).String(name)

	var b strings.Builder
	b.Grow(len(lower))
	sep := false
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if sep && b.Len() > 0 {
				b.WriteByte('-')
			}
			sep = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			sep = true
		}
	}
	return b.String()
}
