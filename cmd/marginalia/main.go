// Package main provides the marginalia CLI entry point.
package main

import (
	"os"
	"path/filepath"

	"github.com/gsekeres/marginalia/internal/store"
	"github.com/gsekeres/marginalia/internal/vault"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "marginalia",
	Short: "Agent-first academic paper library",
	Long: `marginalia manages a vault of academic papers: import references from
BibTeX, acquire open-access PDFs from arXiv, Unpaywall, and Semantic
Scholar, and generate structured summaries via the claude CLI.

All commands output JSON by default for easy integration with AI agents
and other tools. Pass --human for terminal-friendly output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.Version = Version
}

// mustFindVault locates the vault root or exits. Resolution order:
// MARGINALIA_VAULT, walking up from the working directory, then the
// default_vault from the global config.
func mustFindVault() string {
	if root := os.Getenv("MARGINALIA_VAULT"); root != "" {
		if vault.IsVault(root) {
			return root
		}
		exitWithError(ExitConfigError, "MARGINALIA_VAULT=%s is not a marginalia vault", root)
	}

	cwd, err := os.Getwd()
	if err != nil {
		exitWithError(ExitError, "getting current directory: %v", err)
	}
	if root, err := vault.Find(cwd); err == nil {
		return root
	}

	if global, err := vault.LoadGlobalConfig(); err == nil && global.DefaultVault != "" {
		if vault.IsVault(global.DefaultVault) {
			return global.DefaultVault
		}
	}

	exitWithError(ExitConfigError, "not in a marginalia vault (run 'marginalia init' first)")
	return ""
}

// mustOpenStore opens the vault database or exits.
func mustOpenStore(root string) *store.Store {
	db, err := store.Open(vault.DBPath(root))
	if err != nil {
		exitWithError(ExitError, "opening vault database: %v", err)
	}
	return db
}

// loadEnv pulls a .env file from the vault root into the environment.
// Missing files are fine; explicit environment variables win.
func loadEnv(root string) {
	_ = godotenv.Load(filepath.Join(vault.MarginaliaPath(root), ".env"))
	_ = godotenv.Load()
}

// credential resolves a setting from the environment first, then the
// global config.
func credential(envKey string, fromGlobal func(*vault.GlobalConfig) string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if global, err := vault.LoadGlobalConfig(); err == nil {
		return fromGlobal(global)
	}
	return ""
}

func unpaywallEmail() string {
	return credential("UNPAYWALL_EMAIL", func(g *vault.GlobalConfig) string { return g.UnpaywallEmail })
}

func s2APIKey() string {
	return credential("S2_API_KEY", func(g *vault.GlobalConfig) string { return g.S2APIKey })
}
