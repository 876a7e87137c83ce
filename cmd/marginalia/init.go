package main

import (
	"os"

	"github.com/gsekeres/marginalia/internal/store"
	"github.com/gsekeres/marginalia/internal/vault"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a new marginalia vault",
	Long: `Initialize a new marginalia vault in the given directory (default: current).

Creates:
  .marginalia/
  ├── config.json     # Vault config
  └── library.db      # Paper and job database
  papers/             # One directory per citekey
  inbox/              # Manual PDF drop directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	abs, err := os.Getwd()
	if err == nil && root == "." {
		root = abs
	}

	if vault.IsVault(root) {
		exitWithError(ExitError, "directory already contains a marginalia vault")
	}

	if err := vault.Init(root); err != nil {
		exitWithError(ExitError, "initializing vault: %v", err)
	}

	// Create the database up front so later commands never race on schema.
	db, err := store.Open(vault.DBPath(root))
	if err != nil {
		exitWithError(ExitError, "creating vault database: %v", err)
	}
	db.Close()

	if humanOutput {
		outputHuman("Initialized marginalia vault in %s\n", root)
	} else {
		outputJSON(StatusResponse{Status: "initialized", Path: root})
	}

	return nil
}
