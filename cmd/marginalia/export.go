package main

import (
	"github.com/gsekeres/marginalia/internal/bibtex"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <file.bib>",
	Short: "Export the vault as a BibTeX file",
	Long: `Export every paper in the vault as a BibTeX file.

Example:
  marginalia export library.bib`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

// ExportResponse summarizes one export run.
type ExportResponse struct {
	Exported int    `json:"exported"`
	Path     string `json:"path"`
}

func runExport(cmd *cobra.Command, args []string) error {
	root := mustFindVault()
	db := mustOpenStore(root)
	defer db.Close()

	papers, err := db.ListPapers()
	if err != nil {
		exitWithError(ExitError, "listing papers: %v", err)
	}

	if err := bibtex.WriteFile(args[0], papers); err != nil {
		exitWithError(ExitError, "writing %s: %v", args[0], err)
	}

	if humanOutput {
		outputHuman("Exported %d papers to %s\n", len(papers), args[0])
	} else {
		outputJSON(ExportResponse{Exported: len(papers), Path: args[0]})
	}
	return nil
}
