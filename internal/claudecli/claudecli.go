// Package claudecli shells out to the claude CLI for text generation.
// The CLI owns authentication and model access; this package only handles
// invocation, timeouts, and error classification.
package claudecli

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single generation call. Agentic lookups and long
// summaries can take minutes.
const DefaultTimeout = 10 * time.Minute

// ErrUnavailable indicates the claude binary was not found on PATH.
var ErrUnavailable = errors.New("claude CLI not found")

// ErrTimeout indicates a generation call exceeded its deadline.
var ErrTimeout = errors.New("claude CLI timed out")

// ExitError reports a non-zero exit from the CLI with its stderr output.
type ExitError struct {
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return "claude CLI failed"
	}
	return fmt.Sprintf("claude CLI failed: %s", msg)
}

// Generator produces text from a prompt. Satisfied by *Client; tests
// substitute fakes.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Client invokes the claude CLI in non-interactive print mode.
type Client struct {
	model   string
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithModel sets the model passed to the CLI. Empty uses the CLI's default.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithTimeout overrides the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate runs one prompt through the CLI and returns trimmed stdout.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if _, err := exec.LookPath("claude"); err != nil {
		return "", ErrUnavailable
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args := []string{"--print"}
	if c.model != "" {
		args = append(args, "--model", c.model)
	}
	args = append(args, "-p", prompt)

	cmd := exec.CommandContext(cctx, "claude", args...)
	output, err := cmd.Output()
	if err != nil {
		if cctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExitError{Stderr: string(exitErr.Stderr)}
		}
		return "", fmt.Errorf("claude CLI: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// Available reports whether the claude binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("claude")
	return err == nil
}

// Version returns the CLI's version string, or an error if the binary is
// missing or the probe fails.
func Version(ctx context.Context) (string, error) {
	if !Available() {
		return "", ErrUnavailable
	}

	cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	output, err := exec.CommandContext(cctx, "claude", "--version").Output()
	if err != nil {
		return "", fmt.Errorf("claude --version: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// LoggedIn probes whether the CLI has working credentials by sending a
// trivial prompt. False on any failure.
func LoggedIn(ctx context.Context) bool {
	c := New(WithTimeout(30 * time.Second))
	_, err := c.Generate(ctx, "Reply with the single word: ok")
	return err == nil
}
