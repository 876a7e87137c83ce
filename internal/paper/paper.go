// Package paper defines the bibliographic record model shared across the vault.
package paper

import (
	"fmt"
	"time"
)

// Status tracks where a paper is in the acquisition/summarization pipeline.
type Status string

const (
	StatusDiscovered Status = "discovered"
	StatusWanted     Status = "wanted"
	StatusDownloaded Status = "downloaded"
	StatusSummarized Status = "summarized"
	StatusFailed     Status = "failed"
)

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDiscovered, StatusWanted, StatusDownloaded, StatusSummarized, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown paper status: %q", s)
}

// RelatedPaper is a related-work entry extracted during summarization.
// Citekey is set when reconciliation matched the entry to a vault paper.
type RelatedPaper struct {
	Title      string   `json:"title"`
	Authors    []string `json:"authors,omitempty"`
	Year       int      `json:"year,omitempty"`
	WhyRelated string   `json:"why_related,omitempty"`
	Citekey    string   `json:"citekey,omitempty"`
}

// Paper is a bibliographic record in the vault. The citekey is its identity
// and never changes after import.
type Paper struct {
	Citekey  string   `json:"citekey"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors,omitempty"`
	Year     int      `json:"year,omitempty"`
	Journal  string   `json:"journal,omitempty"`
	Volume   string   `json:"volume,omitempty"`
	Number   string   `json:"number,omitempty"`
	Pages    string   `json:"pages,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	URL      string   `json:"url,omitempty"`
	Abstract string   `json:"abstract,omitempty"`

	Status Status `json:"status"`

	PDFPath     string `json:"pdf_path,omitempty"`
	SummaryPath string `json:"summary_path,omitempty"`

	AddedAt      time.Time  `json:"added_at"`
	DownloadedAt *time.Time `json:"downloaded_at,omitempty"`
	SummarizedAt *time.Time `json:"summarized_at,omitempty"`

	SearchAttempts  int            `json:"search_attempts,omitempty"`
	LastSearchError string         `json:"last_search_error,omitempty"`
	ManualLinks     []string       `json:"manual_links,omitempty"`
	Related         []RelatedPaper `json:"related,omitempty"`
}

// New creates a discovered paper with the given identity.
func New(citekey, title string) *Paper {
	return &Paper{
		Citekey: citekey,
		Title:   title,
		Status:  StatusDiscovered,
		AddedAt: time.Now().UTC(),
	}
}

// AuthorsString joins the author list for display.
func (p *Paper) AuthorsString() string {
	s := ""
	for i, a := range p.Authors {
		if i > 0 {
			s += ", "
		}
		s += a
	}
	return s
}

// YearString returns the publication year or "n.d." when unknown.
func (p *Paper) YearString() string {
	if p.Year == 0 {
		return "n.d."
	}
	return fmt.Sprintf("%d", p.Year)
}
