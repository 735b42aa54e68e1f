// Package textutil holds small string helpers shared by the assembler
// and the CLI.
package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const maxTitleRunes = 80

// SanitizeTitle reduces a window title to a filename component. Input is
// NFC-normalized, whitespace runs collapse to single separators,
// characters outside letters, digits, underscore, hyphen, dot, and space
// are dropped, spaces become underscores, and the result is capped at 80
// runes. An empty result becomes "untitled".
func SanitizeTitle(title string) string {
	collapsed := strings.Join(strings.Fields(norm.NFC.String(title)), " ")

	var b strings.Builder
	b.Grow(len(collapsed))
	for _, r := range collapsed {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r == '_' || r == '-' || r == '.':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}

	out := b.String()
	if runes := []rune(out); len(runes) > maxTitleRunes {
		out = string(runes[:maxTitleRunes])
	}
	if out == "" {
		return "untitled"
	}
	return out
}
