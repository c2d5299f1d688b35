package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultSubprocessTimeout bounds each package-manager invocation
const DefaultSubprocessTimeout = 30 * time.Second

// SoftwareInventory enumerates installed software on one platform.
// Implementations are best effort: entries that cannot be read are skipped
// and counted rather than failing the enumeration.
type SoftwareInventory interface {
	Name() string
	Programs(ctx context.Context) ([]Program, int, error)
}

// emptyInventory is used on platforms without a software listing
type emptyInventory struct{}

func (emptyInventory) Name() string { return "none" }

func (emptyInventory) Programs(context.Context) ([]Program, int, error) {
	return []Program{}, 0, nil
}

// commandRunner runs listing commands; tests substitute a fake
type commandRunner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// execRunner runs real subprocesses
type execRunner struct{}

func (execRunner) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run executes a command and returns its stdout.
// A non-zero exit or an expired context is an error.
func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%s timed out: %w", name, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s exited with code %d: %s", name, exitErr.ExitCode(), truncate(stderr.String(), 200))
		}
		return "", fmt.Errorf("failed to execute %s: %w", name, err)
	}

	return stdout.String(), nil
}

// truncate keeps at most max characters of s without splitting a rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func strPtr(s string) *string {
	return &s
}
