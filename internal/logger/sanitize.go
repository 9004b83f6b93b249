package logger

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxFieldLength is the maximum length kept of a user-provided string in logs
const MaxFieldLength = 200

var unprintable = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{P}\p{S}\p{Z}]`)

// Sanitize makes a user-controlled string safe to put in a log field.
// Control characters become spaces, long values are truncated and anything
// that is not a letter, mark, number, punctuation, symbol or space
// is dropped.
func Sanitize(input string) string {
	if input == "" {
		return ""
	}

	if len(input) > MaxFieldLength {
		input = input[:MaxFieldLength] + "... (truncated)"
	}

	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)

	return unprintable.ReplaceAllString(input, "")
}
