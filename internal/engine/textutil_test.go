package engine

import (
	"testing"
	"unicode/utf8"
)

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("short", 10, ""); got != "short" {
		t.Errorf("got %q, want unchanged", got)
	}

	s := "Разработчик Go с опытом"
	got := TruncateRunes(s, 5, "")
	if !utf8.ValidString(got) {
		t.Errorf("truncation produced invalid UTF-8: %q", got)
	}
	if n := utf8.RuneCountInString(got); n > 5 {
		t.Errorf("got %d runes, want at most 5", n)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"", "  ", "b"}, "b"},
		{[]string{"a", "b"}, "a"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := FirstNonEmpty(tt.in...); got != tt.want {
			t.Errorf("FirstNonEmpty(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
