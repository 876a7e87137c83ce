package fetch

import "testing"

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"pdf 1.4", []byte("%PDF-1.4 content"), true},
		{"pdf 2.0", []byte("%PDF-2.0"), true},
		{"html", []byte("<html><body>"), false},
		{"empty", nil, false},
		{"magic mid-file", []byte("junk %PDF-1.4"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPDF(tt.data); got != tt.want {
				t.Errorf("IsPDF() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsLikelyLoginPage(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		data        []byte
		want        bool
	}{
		{"html content type", "text/html; charset=utf-8", []byte(""), true},
		{"doctype prefix", "", []byte("<!DOCTYPE html><html>"), true},
		{"html prefix", "", []byte("<html><head>"), true},
		{"real pdf", "application/pdf", []byte("%PDF-1.4"), false},
		{"pdf no content type", "", []byte("%PDF-1.4"), false},
		{"html deep in body", "", []byte("%PDF-1.4 then <html> later"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsLikelyLoginPage(tt.contentType, tt.data); got != tt.want {
				t.Errorf("IsLikelyLoginPage(%q, %q) = %v, want %v", tt.contentType, tt.data, got, tt.want)
			}
		})
	}
}
