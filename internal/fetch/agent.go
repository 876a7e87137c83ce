package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/gsekeres/marginalia/internal/claudecli"
	"github.com/gsekeres/marginalia/internal/paper"
)

// Agent asks a language model for a direct PDF URL. It runs after every
// structured source has failed; any answer that is not a bare URL counts as
// a failed attempt.
type Agent struct {
	gen claudecli.Generator
}

// NewAgent creates the agent adapter.
func NewAgent(gen claudecli.Generator) *Agent {
	return &Agent{gen: gen}
}

func (a *Agent) Name() string { return "agent" }

func (a *Agent) Resolve(ctx context.Context, p *paper.Paper) Attempt {
	att := Attempt{Source: a.Name()}

	prompt := fmt.Sprintf(
		"Find a direct download URL for the open-access PDF of this academic paper. "+
			"Only respond with a URL that ends in .pdf, nothing else. "+
			"If you cannot find one, respond with exactly 'NONE'.\n\n"+
			"Title: %s\nAuthors: %s\nYear: %s\nDOI: %s",
		p.Title, p.AuthorsString(), p.YearString(), p.DOI)

	response, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		att.FailureReason = err.Error()
		return att
	}

	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "http") && strings.Contains(response, ".pdf") {
		att.OK = true
		att.URL = response
		return att
	}

	att.FailureReason = "agent found no PDF URL"
	return att
}
