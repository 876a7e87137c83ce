package fetch

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/gsekeres/marginalia/internal/gateway"
	"github.com/gsekeres/marginalia/internal/paper"
)

const destArxiv = "arxiv"

// arXiv identifiers come in two shapes: new-style YYMM.NNNNN and old-style
// category/YYMMNNN, both optionally versioned.
var (
	arxivNewID = regexp.MustCompile(`(\d{4}\.\d{4,5}(?:v\d+)?)`)
	arxivOldID = regexp.MustCompile(`([a-z-]+/\d{7}(?:v\d+)?)`)
	arxivEntry = regexp.MustCompile(`<id>https?://arxiv\.org/abs/([^<]+)</id>`)
)

// ExtractArxivID pulls an arXiv identifier out of a DOI, URL, or bare ID.
func ExtractArxivID(input string) string {
	if m := arxivNewID.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	if m := arxivOldID.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return ""
}

// Arxiv resolves papers carrying an arXiv identifier in their DOI or URL.
type Arxiv struct {
	gw      *gateway.Gateway
	baseURL string
	pdfBase string
	byTitle bool
}

// NewArxiv creates the identifier-based arXiv adapter.
func NewArxiv(gw *gateway.Gateway) *Arxiv {
	return &Arxiv{
		gw:      gw,
		baseURL: "https://export.arxiv.org",
		pdfBase: "https://arxiv.org",
	}
}

// NewArxivTitle creates the title-search arXiv adapter, used late in the
// chain after the identifier-backed sources.
func NewArxivTitle(gw *gateway.Gateway) *Arxiv {
	a := NewArxiv(gw)
	a.byTitle = true
	return a
}

func (a *Arxiv) Name() string {
	if a.byTitle {
		return "arxiv-title"
	}
	return "arxiv"
}

func (a *Arxiv) Resolve(ctx context.Context, p *paper.Paper) Attempt {
	if a.byTitle {
		return a.resolveByTitle(ctx, p)
	}
	return a.resolveByID(ctx, p)
}

func (a *Arxiv) resolveByID(ctx context.Context, p *paper.Paper) Attempt {
	att := Attempt{Source: a.Name()}

	id := a.identifierFor(p)
	if id == "" {
		att.FailureReason = "no arXiv identifier"
		return att
	}

	// Verify the paper exists before trusting the predictable PDF URL.
	query := fmt.Sprintf("%s/api/query?id_list=%s", a.baseURL, url.QueryEscape(id))
	body, err := get(ctx, a.gw, destArxiv, query, nil)
	if err != nil {
		att.FailureReason = err.Error()
		return att
	}
	if !strings.Contains(string(body), "<entry>") {
		att.FailureReason = fmt.Sprintf("arXiv has no entry for %s", id)
		return att
	}

	att.OK = true
	att.URL = fmt.Sprintf("%s/pdf/%s.pdf", a.pdfBase, id)
	return att
}

func (a *Arxiv) resolveByTitle(ctx context.Context, p *paper.Paper) Attempt {
	att := Attempt{Source: a.Name()}

	query := fmt.Sprintf("%s/api/query?search_query=ti:%s&start=0&max_results=1",
		a.baseURL, url.QueryEscape(p.Title))
	body, err := get(ctx, a.gw, destArxiv, query, nil)
	if err != nil {
		att.FailureReason = err.Error()
		return att
	}

	m := arxivEntry.FindStringSubmatch(string(body))
	if m == nil {
		att.FailureReason = "no arXiv match for title"
		return att
	}

	att.OK = true
	att.URL = fmt.Sprintf("%s/pdf/%s.pdf", a.pdfBase, m[1])
	return att
}

// identifierFor looks for an arXiv ID in the paper's DOI, then URL.
func (a *Arxiv) identifierFor(p *paper.Paper) string {
	if p.DOI != "" && (strings.HasPrefix(p.DOI, "10.48550/arXiv.") || strings.Contains(p.DOI, "arXiv")) {
		if id := ExtractArxivID(p.DOI); id != "" {
			return id
		}
	}
	if strings.Contains(p.URL, "arxiv.org") {
		return ExtractArxivID(p.URL)
	}
	return ""
}
