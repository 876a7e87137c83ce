// Package bibtex parses and writes BibTeX bibliography files. The parser is
// deliberately tolerant: malformed entries are skipped with a warning rather
// than failing the whole file.
package bibtex

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gsekeres/marginalia/internal/paper"
)

// Warning describes an entry the parser could not handle.
type Warning struct {
	Citekey string
	Reason  string
}

// Entry is one parsed BibTeX record before conversion.
type Entry struct {
	Type    string
	Citekey string
	Fields  map[string]string
}

var (
	andSplit   = regexp.MustCompile(`\s+and\s+`)
	spaceRun   = regexp.MustCompile(`\s+`)
	yearDigits = regexp.MustCompile(`\d{4}`)
)

// ParseFile parses a .bib file into papers. Entries that cannot be converted
// are reported as warnings, not errors.
func ParseFile(path string) ([]*paper.Paper, []Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	papers, warnings := Parse(string(data))
	return papers, warnings, nil
}

// Parse parses BibTeX source text.
func Parse(src string) ([]*paper.Paper, []Warning) {
	var papers []*paper.Paper
	var warnings []Warning

	for _, entry := range scanEntries(src) {
		switch strings.ToLower(entry.Type) {
		case "comment", "preamble", "string":
			continue
		}

		p, err := entryToPaper(entry)
		if err != nil {
			warnings = append(warnings, Warning{Citekey: entry.Citekey, Reason: err.Error()})
			continue
		}
		papers = append(papers, p)
	}

	return papers, warnings
}

// WriteFile exports papers back to BibTeX.
func WriteFile(path string, papers []*paper.Paper) error {
	var b strings.Builder
	for _, p := range papers {
		b.WriteString(Format(p))
		b.WriteString("\n\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// Format renders one paper as an @article entry.
func Format(p *paper.Paper) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("@article{%s,", p.Citekey))
	add := func(field, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("  %s = {%s},", field, value))
		}
	}
	add("title", p.Title)
	add("author", strings.Join(p.Authors, " and "))
	if p.Year != 0 {
		add("year", strconv.Itoa(p.Year))
	}
	add("journal", p.Journal)
	add("volume", p.Volume)
	add("number", p.Number)
	add("pages", p.Pages)
	add("doi", p.DOI)
	add("url", p.URL)
	lines = append(lines, "}")
	return strings.Join(lines, "\n")
}

// ParseAuthors splits a BibTeX author string on " and " and normalizes each
// name, converting "Last, First" to "First Last".
func ParseAuthors(authorStr string) []string {
	if strings.TrimSpace(authorStr) == "" {
		return nil
	}

	var cleaned []string
	for _, author := range andSplit.Split(authorStr, -1) {
		author = spaceRun.ReplaceAllString(strings.TrimSpace(author), " ")

		if i := strings.Index(author, ","); i != -1 {
			last := strings.TrimSpace(author[:i])
			first := strings.TrimSpace(author[i+1:])
			author = strings.TrimSpace(first + " " + last)
		}

		if author != "" {
			cleaned = append(cleaned, author)
		}
	}
	return cleaned
}

// ParseYear extracts the first four-digit year from a value like "2021" or
// "forthcoming 2024". Zero means no year.
func ParseYear(yearStr string) int {
	match := yearDigits.FindString(yearStr)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return year
}

// CleanDOI strips resolver URL prefixes from a DOI value.
func CleanDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return doi
}

func entryToPaper(e Entry) (*paper.Paper, error) {
	if e.Citekey == "" {
		return nil, fmt.Errorf("entry without citekey")
	}

	title := e.Fields["title"]
	// Braces in titles protect capitalization; the stored title drops them.
	title = strings.NewReplacer("{", "", "}", "").Replace(title)
	if title == "" {
		title = "Untitled"
	}

	p := paper.New(e.Citekey, title)
	p.Authors = ParseAuthors(e.Fields["author"])
	p.Year = ParseYear(e.Fields["year"])
	p.Journal = e.Fields["journal"]
	p.Volume = e.Fields["volume"]
	p.Number = e.Fields["number"]
	p.Pages = e.Fields["pages"]
	p.DOI = CleanDOI(e.Fields["doi"])
	p.URL = e.Fields["url"]
	p.Abstract = e.Fields["abstract"]
	return p, nil
}

// scanEntries walks the source and extracts @type{...} blocks, tracking
// brace depth so nested braces in field values survive.
func scanEntries(src string) []Entry {
	var entries []Entry

	i := 0
	for i < len(src) {
		at := strings.IndexByte(src[i:], '@')
		if at == -1 {
			break
		}
		i += at + 1

		// Entry type runs up to the opening brace or paren.
		j := i
		for j < len(src) && src[j] != '{' && src[j] != '(' && !isSpace(src[j]) {
			j++
		}
		entryType := strings.TrimSpace(src[i:j])
		for j < len(src) && isSpace(src[j]) {
			j++
		}
		if j >= len(src) || (src[j] != '{' && src[j] != '(') {
			i = j
			continue
		}

		open, close := byte('{'), byte('}')
		if src[j] == '(' {
			open, close = '(', ')'
		}

		depth := 0
		k := j
		for ; k < len(src); k++ {
			switch src[k] {
			case open:
				depth++
			case close:
				depth--
			}
			if depth == 0 {
				break
			}
		}
		if depth != 0 {
			// Unbalanced entry runs to EOF; take what is there.
			k = len(src) - 1
		}

		body := src[j+1 : k]
		i = k + 1

		entry := Entry{Type: entryType, Fields: map[string]string{}}
		parseBody(body, &entry)
		entries = append(entries, entry)
	}

	return entries
}

// parseBody splits an entry body into citekey and key = value fields.
func parseBody(body string, entry *Entry) {
	comma := strings.IndexByte(body, ',')
	if comma == -1 {
		entry.Citekey = strings.TrimSpace(body)
		return
	}
	entry.Citekey = strings.TrimSpace(body[:comma])

	rest := body[comma+1:]
	for len(rest) > 0 {
		eq := strings.IndexByte(rest, '=')
		if eq == -1 {
			break
		}
		key := strings.ToLower(strings.TrimSpace(strings.Trim(rest[:eq], ", \t\r\n")))
		rest = rest[eq+1:]

		value, remaining := scanValue(rest)
		if key != "" {
			entry.Fields[key] = normalizeValue(value)
		}
		rest = remaining
	}
}

// scanValue reads one field value: braced, quoted, or bare up to the next
// top-level comma.
func scanValue(s string) (value, rest string) {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	if i >= len(s) {
		return "", ""
	}

	switch s[i] {
	case '{':
		depth := 0
		j := i
		for ; j < len(s); j++ {
			switch s[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			if depth == 0 {
				break
			}
		}
		if depth != 0 {
			return s[i+1:], ""
		}
		return s[i+1 : j], skipComma(s[j+1:])
	case '"':
		j := i + 1
		for j < len(s) && s[j] != '"' {
			j++
		}
		if j >= len(s) {
			return s[i+1:], ""
		}
		return s[i+1 : j], skipComma(s[j+1:])
	default:
		j := i
		for j < len(s) && s[j] != ',' {
			j++
		}
		if j >= len(s) {
			return strings.TrimSpace(s[i:]), ""
		}
		return strings.TrimSpace(s[i:j]), s[j+1:]
	}
}

func skipComma(s string) string {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	if i < len(s) && s[i] == ',' {
		i++
	}
	return s[i:]
}

// normalizeValue collapses the line continuations BibTeX allows inside values.
func normalizeValue(v string) string {
	return spaceRun.ReplaceAllString(strings.TrimSpace(v), " ")
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
