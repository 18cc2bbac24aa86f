package sanitize

import (
	"testing"
)

func TestForDisplay(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"plain", "Alice", 0, "Alice"},
		{"empty", "", 10, ""},
		{"color codes", "\x1b[31mMallory\x1b[0m", 0, "Mallory"},
		{"osc title", "\x1b]0;pwned\x07Eve", 0, "Eve"},
		{"newlines and tabs", "line1\nline2\tend", 0, "line1 line2 end"},
		{"bell and nul", "a\x07b\x00c", 0, "a b c"},
		{"collapse spaces", "  lots   of   space  ", 0, "lots of space"},
		{"truncate", "abcdefghij", 5, "abcd…"},
		{"truncate runes", "ééééééé", 4, "ééé…"},
		{"exact length", "abcde", 5, "abcde"},
		{"invalid utf8", "ok\xffok", 0, "ok�ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ForDisplay(tt.input, tt.max); got != tt.want {
				t.Errorf("ForDisplay(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
			}
		})
	}
}

func TestOrDefault(t *testing.T) {
	if got := OrDefault("\x1b[0m\n", "uid-1", MaxNameLen); got != "uid-1" {
		t.Errorf("OrDefault fell through to %q", got)
	}
	if got := OrDefault("Bob", "uid-1", MaxNameLen); got != "Bob" {
		t.Errorf("OrDefault = %q, want Bob", got)
	}
}
