package fetch

import (
	"bytes"
	"strings"
)

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF-")

// IsPDF reports whether the bytes look like a PDF file.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// IsLikelyLoginPage reports whether a response looks like an HTML login or
// paywall page instead of the PDF it claimed to be. Publishers serve these
// with a 200 status.
func IsLikelyLoginPage(contentType string, data []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}

	n := len(data)
	if n > 15 {
		n = 15
	}
	start := strings.ToLower(string(data[:n]))
	return strings.Contains(start, "<!doctype") || strings.Contains(start, "<html")
}
