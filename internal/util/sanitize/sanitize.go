// Package sanitize cleans text read from hand-edited files and remote records.
//
// It removes:
//   - the UTF-8 byte order mark that spreadsheet tools prepend to CSV files
//   - zero-width and other invisible Unicode characters
//   - surrounding whitespace
package sanitize

import (
	"regexp"
	"strings"
)

var invisibleChars = strings.NewReplacer(
	"\u200B", "", // Zero-width space
	"\u200C", "", // Zero-width non-joiner
	"\u200D", "", // Zero-width joiner
	"\uFEFF", "", // Zero-width no-break space (BOM)
	"\u00AD", "", // Soft hyphen
	"\u2060", "", // Word joiner
	"\u180E", "", // Mongolian vowel separator
)

var runsOfSpace = regexp.MustCompile(`[ \t]+`)

// Field strips invisible characters and surrounding whitespace.
func Field(field string) string {
	if field == "" {
		return field
	}
	return strings.TrimSpace(invisibleChars.Replace(field))
}

// Label is Field plus collapsing runs of spaces and tabs, for text shown
// on a single line.
func Label(label string) string {
	return runsOfSpace.ReplaceAllString(Field(label), " ")
}
