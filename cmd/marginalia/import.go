package main

import (
	"github.com/gsekeres/marginalia/internal/bibtex"
	"github.com/gsekeres/marginalia/internal/paper"
	"github.com/gsekeres/marginalia/internal/store"
	"github.com/gsekeres/marginalia/internal/vault"
	"github.com/spf13/cobra"
)

var importUpdate bool

func init() {
	importCmd.Flags().BoolVar(&importUpdate, "update", false, "Overwrite metadata of papers already in the vault")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <file.bib>",
	Short: "Import references from a BibTeX file",
	Long: `Import references from a BibTeX file into the vault.

New entries are marked wanted so 'marginalia find' will try to acquire
their PDFs. Existing citekeys are skipped unless --update is given.
Malformed entries are reported as warnings and do not abort the import.

Examples:
  marginalia import library.bib
  marginalia import library.bib --update`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

// ImportResponse summarizes one import run.
type ImportResponse struct {
	Imported int              `json:"imported"`
	Updated  int              `json:"updated"`
	Skipped  int              `json:"skipped"`
	Warnings []bibtex.Warning `json:"warnings,omitempty"`
}

func runImport(cmd *cobra.Command, args []string) error {
	root := mustFindVault()
	db := mustOpenStore(root)
	defer db.Close()

	papers, warnings, err := bibtex.ParseFile(args[0])
	if err != nil {
		exitWithError(ExitDataError, "parsing %s: %v", args[0], err)
	}

	var resp ImportResponse
	resp.Warnings = warnings

	for _, p := range papers {
		existing, err := db.GetPaper(p.Citekey)
		switch {
		case err == nil && !importUpdate:
			resp.Skipped++
			continue
		case err == nil:
			// Keep pipeline state, refresh bibliographic fields.
			p.Status = existing.Status
			p.PDFPath = existing.PDFPath
			p.SummaryPath = existing.SummaryPath
			p.AddedAt = existing.AddedAt
			p.DownloadedAt = existing.DownloadedAt
			p.SummarizedAt = existing.SummarizedAt
			p.SearchAttempts = existing.SearchAttempts
			p.LastSearchError = existing.LastSearchError
			p.ManualLinks = existing.ManualLinks
			p.Related = existing.Related
			resp.Updated++
		default:
			p.Status = paper.StatusWanted
			resp.Imported++
		}

		if err := db.PutPaper(p); err != nil {
			exitWithError(ExitError, "storing %s: %v", p.Citekey, err)
		}
	}

	rememberBibFile(root, args[0])

	if humanOutput {
		outputHuman("Imported %d, updated %d, skipped %d (already in vault)\n",
			resp.Imported, resp.Updated, resp.Skipped)
		for _, w := range warnings {
			outputHuman("  warning: %s: %s\n", w.Citekey, w.Reason)
		}
	} else {
		outputJSON(resp)
	}

	return nil
}

// rememberBibFile records the last imported bibliography in the vault config.
func rememberBibFile(root, path string) {
	cfg, err := vault.Load(root)
	if err != nil {
		return
	}
	cfg.BibFile = path
	_ = cfg.Save(root)
}

// mustGetPaper loads a paper or exits with a data error.
func mustGetPaper(db *store.Store, citekey string) *paper.Paper {
	p, err := db.GetPaper(citekey)
	if err != nil {
		exitWithError(ExitDataError, "no paper %q in vault: %v", citekey, err)
	}
	return p
}
