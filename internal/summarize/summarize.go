// Package summarize runs PDF text through a language model, validates the
// structured output, and renders the vault summary document.
package summarize

import (
	"context"
	"fmt"
	"os"

	"github.com/gsekeres/marginalia/internal/claudecli"
	"github.com/gsekeres/marginalia/internal/paper"
	"github.com/gsekeres/marginalia/internal/pdftext"
	"github.com/gsekeres/marginalia/internal/vault"
)

const (
	// maxAttempts bounds parse-and-retry rounds per paper.
	maxAttempts = 3

	// Retry prompts truncate the paper text harder to leave the model more
	// room for output.
	truncSecondAttempt = 50_000
	truncLaterAttempts = 30_000
)

// Linker looks up vault papers for related-work reconciliation. Satisfied
// by the store.
type Linker interface {
	FindByNormTitle(normTitle string) ([]*paper.Paper, error)
	FindByTitlePrefix(normPrefix string) ([]*paper.Paper, error)
	FindByAuthorYear(surname string, year int) ([]*paper.Paper, error)
}

// Outcome reports one summarization run.
type Outcome struct {
	OK          bool
	SummaryPath string
	Related     []paper.RelatedPaper
	Attempts    int

	// Set when every parse attempt failed.
	RawResponsePath string
	ParseError      string
}

// Summarizer drives the generate-validate-retry loop.
type Summarizer struct {
	gen       claudecli.Generator
	vaultRoot string
	linker    Linker
}

// New creates a Summarizer. linker may be nil to skip reconciliation.
func New(gen claudecli.Generator, vaultRoot string, linker Linker) *Summarizer {
	return &Summarizer{gen: gen, vaultRoot: vaultRoot, linker: linker}
}

// Summarize asks the model for a structured summary of the paper text,
// retrying parse failures with the previous error embedded in the prompt.
// A model invocation error aborts immediately; parse failures do not. On
// success the rendered markdown is written to papers/<citekey>/summary.md.
// After the last failed attempt the raw response is saved for inspection.
func (s *Summarizer) Summarize(ctx context.Context, p *paper.Paper, text string) (Outcome, error) {
	var out Outcome
	var lastResponse, lastErr string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.Attempts = attempt

		var prompt string
		if attempt == 1 {
			prompt = buildPrompt(p, text)
		} else {
			prompt = buildRetryPrompt(p, text, attempt, lastErr)
		}

		response, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			return out, fmt.Errorf("summarizing %s: %w", p.Citekey, err)
		}

		draft, perr := parseDraft(response)
		if perr != nil {
			lastResponse = response
			lastErr = perr.Error()
			continue
		}

		related := s.reconcile(draft.RelatedWork)
		markdown := renderMarkdown(p, draft, related)

		path := vault.SummaryPath(s.vaultRoot, p.Citekey)
		if err := os.MkdirAll(vault.PaperDir(s.vaultRoot, p.Citekey), 0755); err != nil {
			return out, err
		}
		if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
			return out, fmt.Errorf("writing summary: %w", err)
		}

		out.OK = true
		out.SummaryPath = path
		out.Related = related
		return out, nil
	}

	// Keep the raw output around so the failure can be diagnosed.
	rawPath := vault.RawResponsePath(s.vaultRoot, p.Citekey)
	if err := os.MkdirAll(vault.PaperDir(s.vaultRoot, p.Citekey), 0755); err != nil {
		return out, err
	}
	if err := os.WriteFile(rawPath, []byte(lastResponse), 0644); err != nil {
		return out, fmt.Errorf("saving raw response: %w", err)
	}

	out.RawResponsePath = rawPath
	out.ParseError = fmt.Sprintf("JSON parse error after %d attempts: %s", maxAttempts, lastErr)
	return out, nil
}

// reconcile links related-work entries to vault papers by normalized title,
// then by first-author surname and year. Lookup errors never fail the
// summarization; unmatched entries simply stay unlinked.
func (s *Summarizer) reconcile(entries []RelatedWork) []paper.RelatedPaper {
	related := make([]paper.RelatedPaper, 0, len(entries))

	for _, e := range entries {
		rp := paper.RelatedPaper{
			Title:      e.Title,
			Authors:    e.Authors,
			Year:       e.Year,
			WhyRelated: e.WhyRelated,
		}
		if s.linker != nil {
			rp.Citekey = s.findMatch(e)
		}
		related = append(related, rp)
	}

	return related
}

func (s *Summarizer) findMatch(e RelatedWork) string {
	if norm := paper.NormalizeTitle(e.Title); norm != "" {
		if exact, err := s.linker.FindByNormTitle(norm); err == nil && len(exact) > 0 {
			return exact[0].Citekey
		}
	}

	if prefix := paper.TitlePrefix(e.Title); prefix != "" {
		candidates, err := s.linker.FindByTitlePrefix(prefix)
		if err == nil {
			for _, c := range candidates {
				if paper.TitlesMatch(c.Title, e.Title) {
					return c.Citekey
				}
			}
		}
	}

	if len(e.Authors) > 0 && e.Year != 0 {
		surname := paper.AuthorSurname(e.Authors[0])
		if surname != "" {
			candidates, err := s.linker.FindByAuthorYear(surname, e.Year)
			if err == nil && len(candidates) > 0 {
				return candidates[0].Citekey
			}
		}
	}

	return ""
}

// buildPrompt is the first-attempt prompt requesting pure JSON output.
func buildPrompt(p *paper.Paper, text string) string {
	return fmt.Sprintf(`You are an academic research assistant. Analyze this paper and respond with ONLY valid JSON (no markdown, no explanation, just the JSON object).

Paper: %q by %s (%s)

Respond with this exact JSON structure:
{
  "summary": "1-2 paragraph overview of the paper",
  "key_contributions": ["contribution 1", "contribution 2"],
  "methodology": "brief description of methods used (or null if not applicable)",
  "main_results": ["key finding 1", "key finding 2"],
  "limitations": "any limitations mentioned (or null)",
  "related_work": [
    {
      "title": "related paper title",
      "authors": ["author 1", "author 2"],
      "year": 2020,
      "why_related": "brief explanation"
    }
  ]
}

Important: Return ONLY the JSON object, no other text.

Paper text:
%s`, p.Title, p.AuthorsString(), p.YearString(), text)
}

// buildRetryPrompt embeds the previous parse error and truncates the paper
// text to leave the model more output room.
func buildRetryPrompt(p *paper.Paper, text string, attempt int, previousError string) string {
	maxLen := truncLaterAttempts
	if attempt == 2 {
		maxLen = truncSecondAttempt
	}
	if len(text) > maxLen {
		text = pdftext.Truncate(text, maxLen) + "...\n[TEXT TRUNCATED]"
	}

	return fmt.Sprintf(`CRITICAL: Your previous response failed JSON parsing with error: %q

You MUST respond with ONLY a valid JSON object. No markdown code blocks, no explanations, no text before or after the JSON.

Analyze this academic paper and provide a JSON response.

Paper: %q by %s (%s)

REQUIRED JSON FORMAT (copy this structure exactly):
{
  "summary": "string - 1-2 paragraph overview",
  "key_contributions": ["string array - list contributions"],
  "methodology": "string or null",
  "main_results": ["string array - list results"],
  "limitations": "string or null",
  "related_work": [
    {
      "title": "string - paper title",
      "authors": ["string array"],
      "year": 2020,
      "why_related": "string"
    }
  ]
}

RULES:
- Start your response with { and end with }
- Use double quotes for all strings
- Arrays can be empty [] but must be valid
- null is valid for optional fields (methodology, limitations)
- Escape special characters in strings (newlines as \n, quotes as \")

Paper text:
%s`, previousError, p.Title, p.AuthorsString(), p.YearString(), text)
}
