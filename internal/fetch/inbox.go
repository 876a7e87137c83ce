package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gsekeres/marginalia/internal/paper"
	"github.com/gsekeres/marginalia/internal/vault"
)

// Inbox picks up PDFs the user dropped into the vault's inbox directory as
// <citekey>.pdf. It is the last resort after every remote source.
type Inbox struct {
	vaultRoot string
}

// NewInbox creates the inbox adapter.
func NewInbox(vaultRoot string) *Inbox {
	return &Inbox{vaultRoot: vaultRoot}
}

func (i *Inbox) Name() string { return "inbox" }

func (i *Inbox) Resolve(ctx context.Context, p *paper.Paper) Attempt {
	att := Attempt{Source: i.Name()}

	path := filepath.Join(vault.InboxPath(i.vaultRoot), p.Citekey+".pdf")
	info, err := os.Stat(path)
	if err != nil {
		att.FailureReason = fmt.Sprintf("no %s.pdf in inbox", p.Citekey)
		return att
	}
	if info.IsDir() {
		att.FailureReason = fmt.Sprintf("%s is a directory", path)
		return att
	}

	att.OK = true
	att.LocalPath = path
	return att
}
