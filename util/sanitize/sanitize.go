// Package sanitize cleans strings received from peers before they are shown
// in a terminal or stored in the notification list.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxNameLen bounds peer aliases and syncshell names.
const MaxNameLen = 64

// MaxReasonLen bounds free-form error text.
const MaxReasonLen = 200

var (
	// ansiRegex matches CSI and OSC escape sequences
	ansiRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)
)

// ForDisplay strips escape sequences and control characters, collapses
// whitespace and truncates to max runes with a trailing ellipsis. A max of 0
// disables truncation.
func ForDisplay(s string, max int) string {
	if s == "" {
		return ""
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}

	s = ansiRegex.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")

	if max > 0 && utf8.RuneCountInString(s) > max {
		runes := []rune(s)
		s = strings.TrimRightFunc(string(runes[:max-1]), unicode.IsSpace) + "…"
	}
	return s
}

// OrDefault returns the sanitized s, or fallback if nothing printable remains.
func OrDefault(s, fallback string, max int) string {
	if clean := ForDisplay(s, max); clean != "" {
		return clean
	}
	return ForDisplay(fallback, max)
}
