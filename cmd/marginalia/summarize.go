package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gsekeres/marginalia/internal/claudecli"
	"github.com/gsekeres/marginalia/internal/jobs"
	"github.com/gsekeres/marginalia/internal/paper"
	"github.com/gsekeres/marginalia/internal/pdftext"
	"github.com/gsekeres/marginalia/internal/store"
	"github.com/gsekeres/marginalia/internal/summarize"
	"github.com/gsekeres/marginalia/internal/vault"
	"github.com/spf13/cobra"
)

var (
	summarizeAll     bool
	summarizeWorkers int
	summarizeForce   bool
)

func init() {
	summarizeCmd.Flags().BoolVar(&summarizeAll, "all", false, "Summarize every downloaded paper")
	summarizeCmd.Flags().BoolVar(&summarizeForce, "force", false, "Re-summarize papers that already have a summary")
	summarizeCmd.Flags().IntVar(&summarizeWorkers, "workers", 1, "Concurrent summarization jobs")
	rootCmd.AddCommand(summarizeCmd)
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize [citekey]",
	Short: "Generate structured summaries via the claude CLI",
	Long: `Generate a structured summary for downloaded papers.

The paper's PDF text is sent to the claude CLI, which must respond with
structured JSON. Malformed responses are retried up to three times with
the parse error fed back into the prompt. Related-work entries in the
summary are linked to vault papers by title or by first author and year.

Examples:
  marginalia summarize calvano2020ai
  marginalia summarize --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSummarize,
}

// SummarizeResult is the per-paper outcome of a summarization run.
type SummarizeResult struct {
	Citekey         string `json:"citekey"`
	OK              bool   `json:"ok"`
	SummaryPath     string `json:"summary_path,omitempty"`
	Attempts        int    `json:"attempts"`
	Linked          int    `json:"linked_related,omitempty"`
	ParseError      string `json:"parse_error,omitempty"`
	RawResponsePath string `json:"raw_response_path,omitempty"`
	Error           string `json:"error,omitempty"`
}

func runSummarize(cmd *cobra.Command, args []string) error {
	if summarizeAll == (len(args) == 1) {
		exitWithError(ExitError, "pass exactly one of a citekey or --all")
	}

	if !claudecli.Available() {
		exitWithError(ExitNoClaude, "claude CLI not found in PATH")
	}

	root := mustFindVault()
	loadEnv(root)
	db := mustOpenStore(root)
	defer db.Close()

	targets := summarizeTargets(db, args)
	if len(targets) == 0 {
		if humanOutput {
			outputHuman("Nothing to summarize\n")
		} else {
			outputJSON([]SummarizeResult{})
		}
		return nil
	}

	var gen claudecli.Generator
	if cfg, err := vault.Load(root); err == nil && cfg.ClaudeModel != "" {
		gen = claudecli.New(claudecli.WithModel(cfg.ClaudeModel))
	} else {
		gen = claudecli.New()
	}
	summarizer := summarize.New(gen, root, db)

	results := runSummarization(db, summarizer, targets)

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}

	if humanOutput {
		for _, r := range results {
			switch {
			case r.OK:
				outputHuman("✓ %s (%d attempts, %d related linked)\n", r.Citekey, r.Attempts, r.Linked)
			case r.ParseError != "":
				outputHuman("✗ %s: %s\n    raw response: %s\n", r.Citekey, r.ParseError, r.RawResponsePath)
			default:
				outputHuman("✗ %s: %s\n", r.Citekey, r.Error)
			}
		}
	} else {
		outputJSON(results)
	}

	if !summarizeAll && failed > 0 {
		exitWithError(ExitError, "summarization failed for %s", results[0].Citekey)
	}
	return nil
}

// summarizeTargets resolves which papers this run should summarize. A paper
// needs a downloaded PDF; already-summarized papers are skipped unless
// --force is given.
func summarizeTargets(db *store.Store, args []string) []*paper.Paper {
	if len(args) == 1 {
		p := mustGetPaper(db, args[0])
		if p.PDFPath == "" {
			exitWithError(ExitDataError, "%s has no PDF (run 'marginalia find %s' first)", p.Citekey, p.Citekey)
		}
		return []*paper.Paper{p}
	}

	targets, err := db.ListByStatus(paper.StatusDownloaded)
	if err != nil {
		exitWithError(ExitError, "listing downloaded papers: %v", err)
	}
	if summarizeForce {
		done, err := db.ListByStatus(paper.StatusSummarized)
		if err != nil {
			exitWithError(ExitError, "listing summarized papers: %v", err)
		}
		targets = append(targets, done...)
	}
	return targets
}

func runSummarization(db *store.Store, summarizer *summarize.Summarizer, targets []*paper.Paper) []SummarizeResult {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := jobs.NewScheduler(db, summarizeWorkers)
	defer sched.Shutdown()

	var mu sync.Mutex
	results := make([]SummarizeResult, 0, len(targets))
	record := func(r SummarizeResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	for _, p := range targets {
		p := p
		_, err := sched.Submit("summarize", p.Citekey, func(jctx context.Context, t *jobs.Ticket) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			t.SetProgress(0.1, "extracting text")
			text, err := pdftext.Extract(p.PDFPath)
			if err != nil {
				record(SummarizeResult{Citekey: p.Citekey, Error: err.Error()})
				return err
			}

			t.SetProgress(0.3, "summarizing")
			out, err := summarizer.Summarize(jctx, p, text)
			if err != nil {
				record(SummarizeResult{Citekey: p.Citekey, Attempts: out.Attempts, Error: err.Error()})
				return err
			}

			if !out.OK {
				record(SummarizeResult{
					Citekey:         p.Citekey,
					Attempts:        out.Attempts,
					ParseError:      out.ParseError,
					RawResponsePath: out.RawResponsePath,
				})
				return errors.New(out.ParseError)
			}

			linked := 0
			for _, r := range out.Related {
				if r.Citekey != "" {
					linked++
				}
			}
			record(SummarizeResult{
				Citekey:     p.Citekey,
				OK:          true,
				SummaryPath: out.SummaryPath,
				Attempts:    out.Attempts,
				Linked:      linked,
			})
			return db.AttachSummary(p.Citekey, out.SummaryPath, out.Related)
		})
		if err != nil {
			exitWithError(ExitError, "submitting job for %s: %v", p.Citekey, err)
		}
	}

	sched.Wait()
	return results
}
