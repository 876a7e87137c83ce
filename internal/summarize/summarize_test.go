package summarize

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/gsekeres/marginalia/internal/paper"
	"github.com/gsekeres/marginalia/internal/vault"
)

const validResponse = `{
	"summary": "This paper studies algorithmic pricing.",
	"key_contributions": ["A new model", "Empirical evidence"],
	"methodology": "Simulation",
	"main_results": ["Algorithms learn to collude"],
	"limitations": null,
	"related_work": [
		{
			"title": "The Colonial Origins of Comparative Development",
			"authors": ["Daron Acemoglu"],
			"year": 2001,
			"why_related": "Empirical strategy"
		},
		{
			"title": "An Unknown Working Paper",
			"authors": ["Nobody Inparticular"],
			"year": 2019,
			"why_related": "Tangential"
		}
	]
}`

// scriptedGenerator returns canned responses in order.
type scriptedGenerator struct {
	responses []string
	err       error
	prompts   []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.prompts = append(g.prompts, prompt)
	i := len(g.prompts) - 1
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	return g.responses[i], nil
}

// fakeLinker matches one known vault paper by exact normalized title.
type fakeLinker struct {
	known *paper.Paper
}

func (l *fakeLinker) FindByNormTitle(norm string) ([]*paper.Paper, error) {
	if l.known != nil && paper.NormalizeTitle(l.known.Title) == norm {
		return []*paper.Paper{l.known}, nil
	}
	return nil, nil
}

func (l *fakeLinker) FindByTitlePrefix(prefix string) ([]*paper.Paper, error) {
	if l.known != nil && strings.HasPrefix(paper.NormalizeTitle(l.known.Title), prefix) {
		return []*paper.Paper{l.known}, nil
	}
	return nil, nil
}

func (l *fakeLinker) FindByAuthorYear(surname string, year int) ([]*paper.Paper, error) {
	return nil, nil
}

func testPaper() *paper.Paper {
	p := paper.New("calvano2020ai", "Artificial Intelligence, Algorithmic Pricing, and Collusion")
	p.Authors = []string{"Emilio Calvano"}
	p.Year = 2020
	return p
}

func testVault(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := vault.Init(root); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestSummarizeFirstAttemptSucceeds(t *testing.T) {
	root := testVault(t)
	known := paper.New("acemoglu2001colonial", "The Colonial Origins of Comparative Development")
	gen := &scriptedGenerator{responses: []string{validResponse}}

	s := New(gen, root, &fakeLinker{known: known})
	out, err := s.Summarize(context.Background(), testPaper(), "full paper text")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	if !out.OK || out.Attempts != 1 {
		t.Fatalf("outcome = %+v", out)
	}

	data, err := os.ReadFile(out.SummaryPath)
	if err != nil {
		t.Fatalf("reading summary: %v", err)
	}
	md := string(data)
	for _, want := range []string{
		`citekey: "calvano2020ai"`,
		"## Summary",
		"## Key Contributions",
		"- A new model",
		"## Main Results",
		"## Related Work",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("summary missing %q", want)
		}
	}

	// First entry reconciles against the vault, second stays unlinked.
	if len(out.Related) != 2 {
		t.Fatalf("related = %+v", out.Related)
	}
	if out.Related[0].Citekey != "acemoglu2001colonial" {
		t.Errorf("related[0].Citekey = %q", out.Related[0].Citekey)
	}
	if out.Related[1].Citekey != "" {
		t.Errorf("related[1].Citekey = %q, want unlinked", out.Related[1].Citekey)
	}
}

func TestSummarizeRetriesWithPriorError(t *testing.T) {
	root := testVault(t)
	gen := &scriptedGenerator{responses: []string{
		"I cannot produce JSON right now.",
		`{"summary": "ok"}`, // parses but fails validation
		validResponse,
	}}

	s := New(gen, root, nil)
	out, err := s.Summarize(context.Background(), testPaper(), "text")
	if err != nil {
		t.Fatal(err)
	}
	if !out.OK || out.Attempts != 3 {
		t.Fatalf("outcome = %+v", out)
	}

	if len(gen.prompts) != 3 {
		t.Fatalf("prompts = %d", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[1], "failed JSON parsing") {
		t.Error("second prompt missing retry framing")
	}
	if !strings.Contains(gen.prompts[2], "key_contributions") ||
		!strings.Contains(gen.prompts[2], "missing field") {
		t.Errorf("third prompt should embed the validation error, got %q", gen.prompts[2][:200])
	}
}

func TestSummarizeExhaustionWritesRawResponse(t *testing.T) {
	root := testVault(t)
	gen := &scriptedGenerator{responses: []string{"not json at all"}}

	p := testPaper()
	s := New(gen, root, nil)
	out, err := s.Summarize(context.Background(), p, "text")
	if err != nil {
		t.Fatal(err)
	}

	if out.OK {
		t.Fatal("Summarize() succeeded on unparseable output")
	}
	if out.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", out.Attempts)
	}
	if !strings.Contains(out.ParseError, "after 3 attempts") {
		t.Errorf("parse error = %q", out.ParseError)
	}

	data, err := os.ReadFile(out.RawResponsePath)
	if err != nil {
		t.Fatalf("raw response not written: %v", err)
	}
	if string(data) != "not json at all" {
		t.Errorf("raw response = %q", data)
	}
	if out.RawResponsePath != vault.RawResponsePath(root, p.Citekey) {
		t.Errorf("raw response path = %q", out.RawResponsePath)
	}
}

func TestSummarizeModelErrorAborts(t *testing.T) {
	root := testVault(t)
	gen := &scriptedGenerator{err: errors.New("claude CLI not found")}

	s := New(gen, root, nil)
	_, err := s.Summarize(context.Background(), testPaper(), "text")
	if err == nil {
		t.Fatal("Summarize() expected error when the model is unavailable")
	}
}

func TestRetryPromptTruncatesText(t *testing.T) {
	long := strings.Repeat("a", 100_000)

	second := buildRetryPrompt(testPaper(), long, 2, "err")
	if !strings.Contains(second, "[TEXT TRUNCATED]") {
		t.Error("second attempt should truncate 100k text")
	}
	if len(second) > truncSecondAttempt+5_000 {
		t.Errorf("second prompt length = %d", len(second))
	}

	third := buildRetryPrompt(testPaper(), long, 3, "err")
	if len(third) > truncLaterAttempts+5_000 {
		t.Errorf("third prompt length = %d", len(third))
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"pure json", `{"a": 1}`, `{"a": 1}`},
		{"trailing prose", `{"a": 1} hope that helps!`, `{"a": 1}`},
		{"nested braces", `{"a": {"b": 2}} extra`, `{"a": {"b": 2}}`},
		{"json fence", "Here you go:\n```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence with language", "```javascript\n{\"a\": 1}\n```", `{"a": 1}`},
		{"no json", "sorry, no output", "sorry, no output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDraftValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{"valid", validResponse, ""},
		{"not json", "prose", "invalid JSON"},
		{"missing summary", `{"key_contributions": ["x"], "main_results": ["y"]}`, "summary"},
		{"missing contributions", `{"summary": "s", "main_results": ["y"]}`, "key_contributions"},
		{"missing results", `{"summary": "s", "key_contributions": ["x"]}`, "main_results"},
		{"null optionals ok", `{"summary": "s", "key_contributions": ["x"], "main_results": ["y"], "methodology": null, "limitations": null}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseDraft(tt.in)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("parseDraft() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("parseDraft() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
