//go:build linux

// Package run executes the external hardware-control tools (ryzenadj, the
// display-mode helper). Callers depend on the Runner interface so tests can
// substitute fakes instead of spawning processes.
package run

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single tool invocation when the caller's context
// carries no deadline. The tools are expected to finish sub-second.
const DefaultTimeout = 5 * time.Second

// Runner executes an external command and returns its combined output,
// trimmed.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// IsNotFound reports whether err means the tool binary is not installed.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// New returns the exec-backed Runner.
func New() Runner { return execRunner{} }

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	if _, err := exec.LookPath(name); err != nil {
		return "", fmt.Errorf("run: %s: %w", name, err)
	}

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	text := strings.TrimSpace(string(out))
	if err != nil {
		if text != "" {
			return text, fmt.Errorf("run: %s %s: %w: %s", name, strings.Join(args, " "), err, text)
		}
		return text, fmt.Errorf("run: %s %s: %w", name, strings.Join(args, " "), err)
	}
	return text, nil
}
