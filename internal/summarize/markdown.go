package summarize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gsekeres/marginalia/internal/paper"
)

// renderMarkdown turns a validated draft into the summary document stored
// next to the PDF, with YAML frontmatter for tooling.
func renderMarkdown(p *paper.Paper, d *Draft, related []paper.RelatedPaper) string {
	var b strings.Builder

	authors, _ := json.Marshal(p.Authors)

	fmt.Fprintf(&b, "---\n")
	fmt.Fprintf(&b, "title: %q\n", p.Title)
	fmt.Fprintf(&b, "authors: %s\n", authors)
	fmt.Fprintf(&b, "year: %d\n", p.Year)
	fmt.Fprintf(&b, "journal: %q\n", p.Journal)
	fmt.Fprintf(&b, "citekey: %q\n", p.Citekey)
	fmt.Fprintf(&b, "doi: %q\n", p.DOI)
	fmt.Fprintf(&b, "status: \"summarized\"\n")
	fmt.Fprintf(&b, "---\n\n")

	fmt.Fprintf(&b, "## Summary\n\n%s\n\n", d.Summary)

	b.WriteString("## Key Contributions\n\n")
	for _, c := range d.KeyContributions {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	if d.Methodology != "" {
		fmt.Fprintf(&b, "\n## Methodology\n\n%s\n", d.Methodology)
	}

	b.WriteString("\n## Main Results\n\n")
	for _, r := range d.MainResults {
		fmt.Fprintf(&b, "- %s\n", r)
	}

	if d.Limitations != "" {
		fmt.Fprintf(&b, "\n## Limitations\n\n%s\n", d.Limitations)
	}

	if len(related) > 0 {
		b.WriteString("\n## Related Work\n\n")
		for _, r := range related {
			fmt.Fprintf(&b, "- **%s**", r.Title)
			if len(r.Authors) > 0 {
				fmt.Fprintf(&b, " by %s", strings.Join(r.Authors, ", "))
			}
			if r.Year != 0 {
				fmt.Fprintf(&b, " (%d)", r.Year)
			}
			if r.Citekey != "" {
				fmt.Fprintf(&b, " [[%s]]", r.Citekey)
			}
			if r.WhyRelated != "" {
				fmt.Fprintf(&b, "\n  - %s", r.WhyRelated)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}
