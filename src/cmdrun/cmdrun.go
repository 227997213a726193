// Package cmdrun provides the narrow subprocess interface used by backend
// and boot-entry adapters, so the orchestration core never shells out
// directly and tests can substitute canned output.
package cmdrun

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExitError is returned when a command runs but exits non-zero. Stderr is
// captured so callers can classify technology-specific failures.
type ExitError struct {
	Cmd    string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		msg = "no error output"
	}
	return fmt.Sprintf("%s exited %d: %s", e.Cmd, e.Code, msg)
}

// Exec is the production Runner backed by os/exec.
type Exec struct{}

func (Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return stdout.Bytes(), &ExitError{
				Cmd:    name + " " + strings.Join(args, " "),
				Code:   exitErr.ExitCode(),
				Stderr: stderr.String(),
			}
		}
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// LookPath reports whether an executable is available on PATH.
func LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
