package paper

import (
	"strings"
	"unicode"
)

// prefixWords is how many leading normalized words two titles must share to be
// considered the same paper when they are not exactly equal.
const prefixWords = 5

// minPrefixWords guards short titles: a prefix match needs at least this many words.
const minPrefixWords = 3

// NormalizeTitle lowercases a title, strips punctuation, and collapses whitespace.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// AuthorSurname extracts a normalized surname from either "Last, First" or
// "First Last" author forms.
func AuthorSurname(author string) string {
	name := author
	if i := strings.Index(author, ","); i >= 0 {
		name = author[:i]
	} else if fields := strings.Fields(author); len(fields) > 0 {
		name = fields[len(fields)-1]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TitlePrefix returns the normalized first prefixWords words of a title,
// used to pull reconciliation candidates from the store. Empty when the
// title is too short for a trustworthy prefix comparison.
func TitlePrefix(title string) string {
	norm := NormalizeTitle(title)
	if len(norm) <= 10 {
		return ""
	}
	words := strings.Fields(norm)
	if len(words) < minPrefixWords {
		return ""
	}
	if len(words) > prefixWords {
		words = words[:prefixWords]
	}
	return strings.Join(words, " ")
}

// TitlesMatch reports whether two titles refer to the same paper after
// normalization: exact equality, or the same first prefixWords words when
// both titles are substantial enough to make a prefix comparison meaningful.
func TitlesMatch(a, b string) bool {
	a = NormalizeTitle(a)
	b = NormalizeTitle(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}

	// Prefix comparison is only trustworthy on longer titles.
	if len(a) <= 10 || len(b) <= 10 {
		return false
	}

	wa := strings.Fields(a)
	wb := strings.Fields(b)
	if len(wa) > prefixWords {
		wa = wa[:prefixWords]
	}
	if len(wb) > prefixWords {
		wb = wb[:prefixWords]
	}
	if len(wa) < minPrefixWords || len(wa) != len(wb) {
		return false
	}
	for i := range wa {
		if wa[i] != wb[i] {
			return false
		}
	}
	return true
}
