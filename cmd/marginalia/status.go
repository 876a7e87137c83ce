package main

import (
	"github.com/gsekeres/marginalia/internal/paper"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault pipeline counts",
	RunE:  runStatus,
}

// VaultStatusResponse counts papers by pipeline stage.
type VaultStatusResponse struct {
	Path       string `json:"path"`
	Total      int    `json:"total"`
	Discovered int    `json:"discovered"`
	Wanted     int    `json:"wanted"`
	Downloaded int    `json:"downloaded"`
	Summarized int    `json:"summarized"`
	Failed     int    `json:"failed"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	root := mustFindVault()
	db := mustOpenStore(root)
	defer db.Close()

	papers, err := db.ListPapers()
	if err != nil {
		exitWithError(ExitError, "listing papers: %v", err)
	}

	resp := VaultStatusResponse{Path: root, Total: len(papers)}
	for _, p := range papers {
		switch p.Status {
		case paper.StatusDiscovered:
			resp.Discovered++
		case paper.StatusWanted:
			resp.Wanted++
		case paper.StatusDownloaded:
			resp.Downloaded++
		case paper.StatusSummarized:
			resp.Summarized++
		case paper.StatusFailed:
			resp.Failed++
		}
	}

	if humanOutput {
		outputHuman("vault: %s\n", resp.Path)
		outputHuman("  %d papers: %d wanted, %d downloaded, %d summarized, %d failed\n",
			resp.Total, resp.Wanted, resp.Downloaded, resp.Summarized, resp.Failed)
	} else {
		outputJSON(resp)
	}
	return nil
}
