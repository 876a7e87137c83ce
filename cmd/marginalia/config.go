package main

import (
	"github.com/gsekeres/marginalia/internal/vault"
	"github.com/spf13/cobra"
)

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Get or set vault configuration",
}

var configGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the vault configuration",
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a vault configuration key (claude_model, bib_file)",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

// ConfigUpdateResponse is the response for config set.
type ConfigUpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	root := mustFindVault()

	cfg, err := vault.Load(root)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	if humanOutput {
		outputHuman("bib_file:     %s\n", cfg.BibFile)
		outputHuman("claude_model: %s\n", cfg.ClaudeModel)
	} else {
		outputJSON(cfg)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	root := mustFindVault()
	key, value := args[0], args[1]

	cfg, err := vault.Load(root)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	switch key {
	case "bib_file":
		cfg.BibFile = value
	case "claude_model":
		cfg.ClaudeModel = value
	default:
		exitWithError(ExitError, "unknown config key %q (valid: bib_file, claude_model)", key)
	}

	if err := cfg.Save(root); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	if humanOutput {
		outputHuman("Set %s = %s\n", key, value)
	} else {
		outputJSON(ConfigUpdateResponse{Status: "updated", Key: key, Value: value})
	}
	return nil
}
