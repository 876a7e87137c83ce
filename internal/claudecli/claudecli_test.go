package claudecli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerateUnavailable(t *testing.T) {
	// An empty PATH guarantees the binary cannot be found.
	t.Setenv("PATH", t.TempDir())

	c := New()
	_, err := c.Generate(context.Background(), "hello")
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Generate() error = %v, want ErrUnavailable", err)
	}

	if Available() {
		t.Error("Available() = true with empty PATH")
	}
	if _, err := Version(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Version() error = %v, want ErrUnavailable", err)
	}
	if LoggedIn(context.Background()) {
		t.Error("LoggedIn() = true with empty PATH")
	}
}

func TestExitErrorMessage(t *testing.T) {
	err := &ExitError{Stderr: "invalid API key\n"}
	if got := err.Error(); !strings.Contains(got, "invalid API key") {
		t.Errorf("Error() = %q, want stderr included", got)
	}

	empty := &ExitError{}
	if got := empty.Error(); got != "claude CLI failed" {
		t.Errorf("Error() = %q", got)
	}
}

func TestOptions(t *testing.T) {
	c := New(WithModel("sonnet"), WithTimeout(time.Minute))
	if c.model != "sonnet" {
		t.Errorf("model = %q", c.model)
	}
	if c.timeout != time.Minute {
		t.Errorf("timeout = %v", c.timeout)
	}

	if New().timeout != DefaultTimeout {
		t.Error("default timeout not applied")
	}
}

// Client must satisfy Generator so callers can substitute fakes.
var _ Generator = (*Client)(nil)
