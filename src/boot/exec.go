package boot

import (
	"context"
	"fmt"
	"strings"

	"snapset/src/cmdrun"
)

// DefaultManagerBinary is the boot-entry manager CLI driven by ExecManager.
const DefaultManagerBinary = "boom"

// ExecManager drives a boom-compatible boot-entry manager binary. The last
// line of `entry create` output is the new entry's identifier.
type ExecManager struct {
	bin string
	run cmdrun.Runner
}

func NewExecManager(bin string, run cmdrun.Runner) *ExecManager {
	if bin == "" {
		bin = DefaultManagerBinary
	}
	return &ExecManager{bin: bin, run: run}
}

func (m *ExecManager) CreateEntry(ctx context.Context, entry Entry) (string, error) {
	args := []string{"entry", "create",
		"--title", entry.Title,
		"--linux", entry.Kernel,
		"--initrd", entry.Initramfs,
	}
	if entry.Options != "" {
		args = append(args, "--options", entry.Options)
	}
	if entry.RootDevice != "" {
		args = append(args, "--root-device", entry.RootDevice)
	}
	out, err := m.run.Run(ctx, m.bin, args...)
	if err != nil {
		return "", fmt.Errorf("create boot entry: %w", err)
	}
	id := lastLine(string(out))
	if id == "" {
		return "", fmt.Errorf("boot-entry manager returned no entry id")
	}
	return id, nil
}

func (m *ExecManager) DeleteEntry(ctx context.Context, id string) error {
	_, err := m.run.Run(ctx, m.bin, "entry", "delete", id)
	if err != nil {
		if exit, ok := err.(*cmdrun.ExitError); ok &&
			strings.Contains(strings.ToLower(exit.Stderr), "not found") {
			return nil
		}
		return fmt.Errorf("delete boot entry %s: %w", id, err)
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
