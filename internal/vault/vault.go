// Package vault handles vault layout, discovery, and configuration.
package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents vault configuration stored in .marginalia/config.json.
type Config struct {
	BibFile     string `json:"bib_file,omitempty"`     // Last imported bibliography file
	ClaudeModel string `json:"claude_model,omitempty"` // Model flag passed to the claude CLI
}

const (
	// MarginaliaDir is the marker directory identifying a vault root.
	MarginaliaDir = ".marginalia"
	// ConfigFile is the per-vault config file name.
	ConfigFile = "config.json"
	// DBFile is the SQLite database file name.
	DBFile = "library.db"
	// PapersDir holds one subdirectory per citekey.
	PapersDir = "papers"
	// InboxDir is the manual-drop directory scanned by the inbox adapter.
	InboxDir = "inbox"
)

// MarginaliaPath returns the path to the .marginalia directory.
func MarginaliaPath(root string) string {
	return filepath.Join(root, MarginaliaDir)
}

// ConfigPath returns the path to config.json.
func ConfigPath(root string) string {
	return filepath.Join(root, MarginaliaDir, ConfigFile)
}

// DBPath returns the path to the vault database.
func DBPath(root string) string {
	return filepath.Join(root, MarginaliaDir, DBFile)
}

// PaperDir returns the directory holding a paper's files.
func PaperDir(root, citekey string) string {
	return filepath.Join(root, PapersDir, citekey)
}

// PDFPath returns the canonical PDF location for a citekey.
func PDFPath(root, citekey string) string {
	return filepath.Join(PaperDir(root, citekey), "paper.pdf")
}

// SummaryPath returns the canonical summary location for a citekey.
func SummaryPath(root, citekey string) string {
	return filepath.Join(PaperDir(root, citekey), "summary.md")
}

// RawResponsePath returns the diagnostic location for a failed summarization's
// raw model output.
func RawResponsePath(root, citekey string) string {
	return filepath.Join(PaperDir(root, citekey), "raw_response.txt")
}

// InboxPath returns the manual-drop directory.
func InboxPath(root string) string {
	return filepath.Join(root, InboxDir)
}

// IsVault checks if the given path contains a marginalia vault.
func IsVault(root string) bool {
	info, err := os.Stat(MarginaliaPath(root))
	return err == nil && info.IsDir()
}

// Find walks up from the given path to find a vault root.
func Find(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsVault(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a marginalia vault (no .marginalia directory found)")
		}
		abs = parent
	}
}

// Init creates the vault skeleton at root: the marker directory, papers/,
// inbox/, and an empty config.
func Init(root string) error {
	for _, dir := range []string{
		MarginaliaPath(root),
		filepath.Join(root, PapersDir),
		InboxPath(root),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	cfg := &Config{}
	return cfg.Save(root)
}

// Load reads configuration from the vault at the given root.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &cfg, nil
}

// Save writes configuration to the vault at the given root.
func (c *Config) Save(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
