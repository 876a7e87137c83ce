package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gsekeres/marginalia/internal/gateway"
	"github.com/gsekeres/marginalia/internal/paper"
)

const destScholar = "semanticscholar"

// Scholar resolves papers through the Semantic Scholar Graph API, by DOI or
// by title search. An API key raises the rate limits but is optional.
type Scholar struct {
	gw      *gateway.Gateway
	baseURL string
	apiKey  string
	byTitle bool
}

type scholarPaper struct {
	Title         string `json:"title"`
	OpenAccessPDF *struct {
		URL string `json:"url"`
	} `json:"openAccessPdf"`
}

type scholarSearch struct {
	Data []scholarPaper `json:"data"`
}

// NewScholar creates the DOI-based Semantic Scholar adapter.
func NewScholar(gw *gateway.Gateway, apiKey string) *Scholar {
	return &Scholar{
		gw:      gw,
		baseURL: "https://api.semanticscholar.org",
		apiKey:  apiKey,
	}
}

// NewScholarTitle creates the title-search variant. Search results must
// clear the normalized-title match before their PDF is trusted.
func NewScholarTitle(gw *gateway.Gateway, apiKey string) *Scholar {
	s := NewScholar(gw, apiKey)
	s.byTitle = true
	return s
}

func (s *Scholar) Name() string {
	if s.byTitle {
		return "semanticscholar-title"
	}
	return "semanticscholar"
}

func (s *Scholar) headers() map[string]string {
	if s.apiKey == "" {
		return nil
	}
	return map[string]string{"x-api-key": s.apiKey}
}

func (s *Scholar) Resolve(ctx context.Context, p *paper.Paper) Attempt {
	if s.byTitle {
		return s.resolveByTitle(ctx, p)
	}
	return s.resolveByDOI(ctx, p)
}

func (s *Scholar) resolveByDOI(ctx context.Context, p *paper.Paper) Attempt {
	att := Attempt{Source: s.Name()}

	if p.DOI == "" {
		att.FailureReason = "no DOI"
		return att
	}

	query := fmt.Sprintf("%s/graph/v1/paper/DOI:%s?fields=openAccessPdf", s.baseURL, p.DOI)
	body, err := get(ctx, s.gw, destScholar, query, s.headers())
	if err != nil {
		att.FailureReason = err.Error()
		return att
	}

	var resp scholarPaper
	if err := json.Unmarshal(body, &resp); err != nil {
		att.FailureReason = fmt.Sprintf("parsing response: %v", err)
		return att
	}

	if resp.OpenAccessPDF == nil || resp.OpenAccessPDF.URL == "" {
		att.FailureReason = "no open-access PDF"
		return att
	}

	att.OK = true
	att.URL = resp.OpenAccessPDF.URL
	return att
}

func (s *Scholar) resolveByTitle(ctx context.Context, p *paper.Paper) Attempt {
	att := Attempt{Source: s.Name()}

	query := fmt.Sprintf("%s/graph/v1/paper/search?query=%s&fields=title,openAccessPdf&limit=5",
		s.baseURL, url.QueryEscape(p.Title))
	body, err := get(ctx, s.gw, destScholar, query, s.headers())
	if err != nil {
		att.FailureReason = err.Error()
		return att
	}

	var resp scholarSearch
	if err := json.Unmarshal(body, &resp); err != nil {
		att.FailureReason = fmt.Sprintf("parsing response: %v", err)
		return att
	}

	for _, hit := range resp.Data {
		if !paper.TitlesMatch(hit.Title, p.Title) {
			continue
		}
		if hit.OpenAccessPDF != nil && hit.OpenAccessPDF.URL != "" {
			att.OK = true
			att.URL = hit.OpenAccessPDF.URL
			return att
		}
	}

	att.FailureReason = "no matching result with an open-access PDF"
	return att
}
