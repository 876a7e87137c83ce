package pdftext

import (
	"strings"
	"testing"
)

func TestFindDOI(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "plain doi",
			text: "available at https://doi.org/10.1257/aer.20180310 online",
			want: "10.1257/aer.20180310",
		},
		{
			name: "trailing punctuation stripped",
			text: "see doi:10.1086/261725.",
			want: "10.1086/261725",
		},
		{
			name: "no doi",
			text: "a page of ordinary prose",
			want: "",
		},
		{
			name: "too short rejected",
			text: "ref 10.1/a end",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findDOI(tt.text); got != tt.want {
				t.Errorf("findDOI(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 100); got != "short" {
		t.Errorf("Truncate() = %q", got)
	}

	// Truncation must not split a multi-byte rune.
	s := strings.Repeat("é", 10) // 2 bytes each
	got := Truncate(s, 5)
	if len(got) != 4 {
		t.Errorf("Truncate() len = %d, want 4 (rune boundary)", len(got))
	}
	for _, r := range got {
		if r != 'é' {
			t.Errorf("Truncate() produced invalid rune %q", r)
		}
	}
}

func TestStripBlankLines(t *testing.T) {
	in := "first\n\n   \nsecond  \n\nthird\n"
	want := "first\nsecond\nthird"
	if got := stripBlankLines(in); got != want {
		t.Errorf("stripBlankLines() = %q, want %q", got, want)
	}
}
