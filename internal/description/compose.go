// Package description assembles one human-readable description from the
// labeled text tabs of a content page.
package description

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Section is one labeled text fragment. The first section passed to
// Compose is the body and its label is not printed.
type Section struct {
	Label string
	Text  string
}

// rightQuote replaces the Windows-1252 right single quotation mark that the
// source site leaks as U+0092 or as a bare 0x92 byte.
const rightQuote = '’'

var englishVariant = regexp.MustCompile(`(?s)English (About|More Info|Transcript):.*`)

// Compose joins sections. The first section is the body when non-empty;
// every later non-empty section is appended as "\n\nLABEL: text". Empty
// sections are dropped, and the result never begins with a separator.
func Compose(sections []Section) string {
	var parts []string
	for i, s := range sections {
		text := Clean(s.Text)
		if text == "" {
			continue
		}
		if i == 0 {
			parts = append(parts, text)
			continue
		}
		parts = append(parts, strings.ToUpper(strings.TrimSpace(s.Label))+": "+text)
	}
	return strings.Join(parts, "\n\n")
}

// Clean strips the duplicated English block, trims and repairs quotes.
func Clean(text string) string {
	text = englishVariant.ReplaceAllString(text, "")
	return strings.TrimSpace(RepairQuotes(text))
}

// RepairQuotes replaces U+0092 and raw 0x92 bytes with U+2019. Other
// invalid bytes are left untouched.
func RepairQuotes(s string) string {
	if !strings.ContainsRune(s, '\u0092') && strings.IndexByte(s, 0x92) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1 && s[i] == 0x92:
			b.WriteRune(rightQuote)
		case r == '\u0092':
			b.WriteRune(rightQuote)
		default:
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}
