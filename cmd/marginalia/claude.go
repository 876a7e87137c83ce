package main

import (
	"context"
	"os"
	"time"

	"github.com/gsekeres/marginalia/internal/claudecli"
	"github.com/spf13/cobra"
)

func init() {
	claudeCmd.AddCommand(claudeStatusCmd)
	rootCmd.AddCommand(claudeCmd)
}

var claudeCmd = &cobra.Command{
	Use:   "claude",
	Short: "Check the claude CLI integration",
}

var claudeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the claude CLI is installed and logged in",
	RunE:  runClaudeStatus,
}

// ClaudeStatusResponse reports the claude CLI's availability.
type ClaudeStatusResponse struct {
	Installed bool   `json:"installed"`
	Version   string `json:"version,omitempty"`
	LoggedIn  bool   `json:"logged_in"`
}

func runClaudeStatus(cmd *cobra.Command, args []string) error {
	var resp ClaudeStatusResponse

	resp.Installed = claudecli.Available()
	if resp.Installed {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if v, err := claudecli.Version(ctx); err == nil {
			resp.Version = v
		}
		resp.LoggedIn = claudecli.LoggedIn(ctx)
	}

	if humanOutput {
		if !resp.Installed {
			outputHuman("claude CLI: not installed\n")
		} else {
			outputHuman("claude CLI: %s\n", resp.Version)
			if resp.LoggedIn {
				outputHuman("logged in:  yes\n")
			} else {
				outputHuman("logged in:  no\n")
			}
		}
	} else {
		outputJSON(resp)
	}

	if !resp.Installed {
		os.Exit(ExitNoClaude)
	}
	return nil
}
