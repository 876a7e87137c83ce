package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gsekeres/marginalia/internal/claudecli"
	"github.com/gsekeres/marginalia/internal/fetch"
	"github.com/gsekeres/marginalia/internal/gateway"
	"github.com/gsekeres/marginalia/internal/jobs"
	"github.com/gsekeres/marginalia/internal/paper"
	"github.com/gsekeres/marginalia/internal/store"
	"github.com/gsekeres/marginalia/internal/vault"
	"github.com/spf13/cobra"
)

var (
	findAll     bool
	findRetry   bool
	findWorkers int
)

func init() {
	findCmd.Flags().BoolVar(&findAll, "all", false, "Acquire PDFs for every wanted paper")
	findCmd.Flags().BoolVar(&findRetry, "retry-failed", false, "With --all, also retry papers whose last search failed")
	findCmd.Flags().IntVar(&findWorkers, "workers", 2, "Concurrent acquisition jobs")
	rootCmd.AddCommand(findCmd)
}

var findCmd = &cobra.Command{
	Use:   "find [citekey]",
	Short: "Acquire PDFs from open-access sources",
	Long: `Acquire PDFs for papers in the vault.

Sources are tried in order: arXiv by identifier, Unpaywall, Semantic
Scholar by DOI then by title, arXiv by title, a claude-driven web search,
and finally the vault inbox directory. The first source producing a real
PDF wins. When every source fails, manual search links are recorded on
the paper.

Examples:
  marginalia find calvano2020ai
  marginalia find --all --workers 4
  marginalia find --all --retry-failed`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFind,
}

// FindResult is the per-paper outcome of an acquisition run.
type FindResult struct {
	Citekey       string   `json:"citekey"`
	OK            bool     `json:"ok"`
	Source        string   `json:"source,omitempty"`
	PDFPath       string   `json:"pdf_path,omitempty"`
	FailureReason string   `json:"failure_reason,omitempty"`
	ManualLinks   []string `json:"manual_links,omitempty"`
}

func runFind(cmd *cobra.Command, args []string) error {
	if findAll == (len(args) == 1) {
		exitWithError(ExitError, "pass exactly one of a citekey or --all")
	}

	root := mustFindVault()
	loadEnv(root)
	db := mustOpenStore(root)
	defer db.Close()

	targets := findTargets(db, args)
	if len(targets) == 0 {
		if humanOutput {
			outputHuman("Nothing to acquire\n")
		} else {
			outputJSON([]FindResult{})
		}
		return nil
	}

	finder := newFinder(root)
	results := runAcquisition(db, finder, targets)

	failed := 0
	for _, r := range results {
		if !r.OK {
			failed++
		}
	}

	if humanOutput {
		for _, r := range results {
			if r.OK {
				outputHuman("✓ %s (%s)\n", r.Citekey, r.Source)
			} else {
				outputHuman("✗ %s: %s\n", r.Citekey, r.FailureReason)
				for _, l := range r.ManualLinks {
					outputHuman("    %s\n", l)
				}
			}
		}
	} else {
		outputJSON(results)
	}

	if !findAll && failed > 0 {
		exitWithError(ExitNoPDF, "no source produced a valid PDF for %s", results[0].Citekey)
	}
	return nil
}

// findTargets resolves which papers this run should acquire.
func findTargets(db *store.Store, args []string) []*paper.Paper {
	if len(args) == 1 {
		return []*paper.Paper{mustGetPaper(db, args[0])}
	}

	targets, err := db.ListByStatus(paper.StatusWanted)
	if err != nil {
		exitWithError(ExitError, "listing wanted papers: %v", err)
	}
	if findRetry {
		failed, err := db.ListByStatus(paper.StatusFailed)
		if err != nil {
			exitWithError(ExitError, "listing failed papers: %v", err)
		}
		targets = append(targets, failed...)
	}
	return targets
}

// newFinder builds the acquisition pipeline for the vault, wiring in
// credentials and the configured claude model.
func newFinder(root string) *fetch.Finder {
	opts := []fetch.FinderOption{
		fetch.WithUnpaywallEmail(unpaywallEmail()),
		fetch.WithS2APIKey(s2APIKey()),
	}
	if cfg, err := vault.Load(root); err == nil && cfg.ClaudeModel != "" {
		opts = append(opts, fetch.WithGenerator(claudecli.New(claudecli.WithModel(cfg.ClaudeModel))))
	}
	return fetch.NewFinder(gateway.New(), root, opts...)
}

// runAcquisition pushes each target through the scheduler and blocks until
// every job finishes. Job state is mirrored to the vault database, so
// 'marginalia jobs' can inspect the run afterwards.
func runAcquisition(db *store.Store, finder *fetch.Finder, targets []*paper.Paper) []FindResult {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := jobs.NewScheduler(db, findWorkers)
	defer sched.Shutdown()

	var mu sync.Mutex
	results := make([]FindResult, 0, len(targets))

	for _, p := range targets {
		p := p
		_, err := sched.Submit("find", p.Citekey, func(jctx context.Context, t *jobs.Ticket) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			t.SetProgress(0.1, "trying sources")
			res, err := finder.Acquire(jctx, p)
			if err != nil {
				return err
			}

			fr := FindResult{
				Citekey:       p.Citekey,
				OK:            res.OK,
				Source:        res.Source,
				PDFPath:       res.PDFPath,
				FailureReason: res.FailureReason,
				ManualLinks:   res.ManualLinks,
			}
			mu.Lock()
			results = append(results, fr)
			mu.Unlock()

			if !res.OK {
				if derr := db.RecordSearchFailure(p.Citekey, res.FailureReason, res.ManualLinks); derr != nil {
					return derr
				}
				return errors.New(res.FailureReason)
			}
			return db.SetPDFPath(p.Citekey, res.PDFPath)
		})
		if err != nil {
			exitWithError(ExitError, "submitting job for %s: %v", p.Citekey, err)
		}
	}

	sched.Wait()
	return results
}
