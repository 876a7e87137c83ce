// Package fetch locates and downloads PDFs for papers, trying a fixed
// sequence of open-access sources before falling back to manual search links.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/gsekeres/marginalia/internal/claudecli"
	"github.com/gsekeres/marginalia/internal/gateway"
	"github.com/gsekeres/marginalia/internal/paper"
	"github.com/gsekeres/marginalia/internal/vault"
)

// userAgent identifies us to the academic APIs, per their terms of use.
const userAgent = "marginalia/1.0 (academic literature manager)"

// destDownload is the gateway destination for PDF downloads themselves, as
// opposed to the metadata APIs.
const destDownload = "download"

// Attempt records one source's try at resolving a paper.
type Attempt struct {
	Source        string
	OK            bool
	URL           string // candidate PDF URL when OK
	LocalPath     string // set instead of URL for filesystem sources
	FailureReason string
}

// Adapter resolves a paper to a candidate PDF location. Adapters never
// return Go errors; failures are data.
type Adapter interface {
	Name() string
	Resolve(ctx context.Context, p *paper.Paper) Attempt
}

// Result is the outcome of a full acquisition run.
type Result struct {
	OK            bool
	Source        string
	PDFPath       string
	Attempts      []Attempt
	ManualLinks   []string
	FailureReason string
}

// Finder walks the adapter chain for a paper and lands the PDF in the vault.
type Finder struct {
	gw        *gateway.Gateway
	vaultRoot string
	adapters  []Adapter

	unpaywallEmail string
	s2APIKey       string
	gen            claudecli.Generator
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithAdapters replaces the default adapter chain.
func WithAdapters(adapters ...Adapter) FinderOption {
	return func(f *Finder) {
		f.adapters = adapters
	}
}

// WithUnpaywallEmail sets the email Unpaywall requires on every request.
func WithUnpaywallEmail(email string) FinderOption {
	return func(f *Finder) {
		f.unpaywallEmail = email
	}
}

// WithS2APIKey sets an optional Semantic Scholar API key.
func WithS2APIKey(key string) FinderOption {
	return func(f *Finder) {
		f.s2APIKey = key
	}
}

// WithGenerator sets the text generator backing the agent adapter.
func WithGenerator(gen claudecli.Generator) FinderOption {
	return func(f *Finder) {
		f.gen = gen
	}
}

// NewFinder creates a Finder with the standard source order: arXiv by
// identifier, Unpaywall, Semantic Scholar by DOI then title, arXiv by title,
// the agent, and finally the vault inbox.
func NewFinder(gw *gateway.Gateway, vaultRoot string, opts ...FinderOption) *Finder {
	f := &Finder{gw: gw, vaultRoot: vaultRoot}
	for _, opt := range opts {
		opt(f)
	}

	if f.adapters == nil {
		if f.gen == nil {
			f.gen = claudecli.New()
		}
		f.adapters = []Adapter{
			NewArxiv(gw),
			NewUnpaywall(gw, f.unpaywallEmail),
			NewScholar(gw, f.s2APIKey),
			NewScholarTitle(gw, f.s2APIKey),
			NewArxivTitle(gw),
			NewAgent(f.gen),
			NewInbox(vaultRoot),
		}
	}

	return f
}

// Acquire tries each source in order and downloads the first candidate that
// validates as a real PDF. A failing source never stops the walk; only
// cancellation does.
func (f *Finder) Acquire(ctx context.Context, p *paper.Paper) (Result, error) {
	var res Result

	for _, a := range f.adapters {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		att := a.Resolve(ctx, p)
		if !att.OK {
			res.Attempts = append(res.Attempts, att)
			continue
		}

		pdfPath, err := f.land(ctx, p.Citekey, att)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			att.OK = false
			att.FailureReason = err.Error()
			res.Attempts = append(res.Attempts, att)
			continue
		}

		att.LocalPath = pdfPath
		res.Attempts = append(res.Attempts, att)
		res.OK = true
		res.Source = a.Name()
		res.PDFPath = pdfPath
		return res, nil
	}

	res.ManualLinks = SearchLinks(p)
	res.FailureReason = "no source produced a valid PDF"
	return res, nil
}

// land materializes a resolved candidate as papers/<citekey>/paper.pdf.
func (f *Finder) land(ctx context.Context, citekey string, att Attempt) (string, error) {
	var data []byte
	var contentType string
	var err error

	if att.LocalPath != "" {
		data, err = os.ReadFile(att.LocalPath)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", att.LocalPath, err)
		}
	} else {
		data, contentType, err = f.download(ctx, att.URL)
		if err != nil {
			return "", err
		}
	}

	if IsLikelyLoginPage(contentType, data) {
		return "", fmt.Errorf("response appears to be a login or paywall page")
	}
	if !IsPDF(data) {
		return "", fmt.Errorf("response is not a PDF")
	}

	dir := vault.PaperDir(f.vaultRoot, citekey)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	pdfPath := vault.PDFPath(f.vaultRoot, citekey)
	if err := os.WriteFile(pdfPath, data, 0644); err != nil {
		return "", err
	}
	return pdfPath, nil
}

func (f *Finder) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.gw.Do(ctx, destDownload, req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// SearchLinks builds the manual fallback links shown when every source
// fails. The order is fixed so the output is stable.
func SearchLinks(p *paper.Paper) []string {
	titleQuery := url.QueryEscape(p.Title)

	links := []string{
		"https://scholar.google.com/scholar?q=" + titleQuery,
		"https://www.semanticscholar.org/search?q=" + titleQuery,
	}

	if p.DOI != "" {
		links = append(links, "https://doi.org/"+p.DOI)
	}

	links = append(links, "https://papers.ssrn.com/sol3/results.cfm?txtKey_Words="+titleQuery)

	if len(p.Authors) > 0 {
		title := p.Title
		if len(title) > 50 {
			title = title[:50]
		}
		authorQuery := url.QueryEscape(p.Authors[0] + " " + title)
		links = append(links, "https://scholar.google.com/scholar?q="+authorQuery)
	}

	return links
}

// get issues a gateway GET against a metadata API.
func get(ctx context.Context, gw *gateway.Gateway, dest, rawURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := gw.Do(ctx, dest, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
