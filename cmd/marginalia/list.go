package main

import (
	"github.com/gsekeres/marginalia/internal/paper"
	"github.com/spf13/cobra"
)

var listStatus string

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (discovered, wanted, downloaded, summarized, failed)")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List papers in the vault",
	Long: `List papers in the vault, optionally filtered by pipeline status.

Examples:
  marginalia list
  marginalia list --status wanted`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	root := mustFindVault()
	db := mustOpenStore(root)
	defer db.Close()

	var papers []*paper.Paper
	var err error
	if listStatus != "" {
		status, perr := paper.ParseStatus(listStatus)
		if perr != nil {
			exitWithError(ExitDataError, "%v", perr)
		}
		papers, err = db.ListByStatus(status)
	} else {
		papers, err = db.ListPapers()
	}
	if err != nil {
		exitWithError(ExitError, "listing papers: %v", err)
	}

	if humanOutput {
		if len(papers) == 0 {
			outputHuman("No papers in vault\n")
			return nil
		}
		outputHuman("%d papers:\n\n", len(papers))
		for _, p := range papers {
			outputHuman("  %-24s %-11s %s\n", p.Citekey, p.Status, truncateString(p.Title, ListTitleMaxLen))
		}
	} else {
		if papers == nil {
			papers = []*paper.Paper{}
		}
		outputJSON(papers)
	}

	return nil
}
