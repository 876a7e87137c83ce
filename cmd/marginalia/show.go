package main

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <citekey>",
	Short: "Show one paper's full record",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	root := mustFindVault()
	db := mustOpenStore(root)
	defer db.Close()

	p := mustGetPaper(db, args[0])

	if !humanOutput {
		return outputJSON(p)
	}

	outputHuman("%s\n", truncateString(p.Title, DetailTitleMaxLen))
	outputHuman("  citekey:  %s\n", p.Citekey)
	outputHuman("  authors:  %s\n", formatAuthorsShort(p.Authors, 5))
	outputHuman("  year:     %s\n", p.YearString())
	if p.Journal != "" {
		outputHuman("  journal:  %s\n", p.Journal)
	}
	if p.DOI != "" {
		outputHuman("  doi:      %s\n", p.DOI)
	}
	outputHuman("  status:   %s\n", p.Status)
	if p.PDFPath != "" {
		outputHuman("  pdf:      %s\n", p.PDFPath)
	}
	if p.SummaryPath != "" {
		outputHuman("  summary:  %s\n", p.SummaryPath)
	}
	if p.LastSearchError != "" {
		outputHuman("  last search error: %s (%d attempts)\n", p.LastSearchError, p.SearchAttempts)
	}
	if len(p.ManualLinks) > 0 {
		outputHuman("  manual search links:\n")
		for _, l := range p.ManualLinks {
			outputHuman("    %s\n", l)
		}
	}
	if len(p.Related) > 0 {
		outputHuman("  related:\n")
		for _, r := range p.Related {
			if r.Citekey != "" {
				outputHuman("    [[%s]] %s\n", r.Citekey, truncateString(r.Title, ListTitleMaxLen))
			} else {
				outputHuman("    %s\n", truncateString(r.Title, ListTitleMaxLen))
			}
		}
	}

	return nil
}
