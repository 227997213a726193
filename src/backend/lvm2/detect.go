package lvm2

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"snapset/src/cmdrun"
)

var lvmVersionRegexp = regexp.MustCompile(`LVM version:\s+([0-9][^\s(]*)`)

// Detect verifies the LVM2 tools are present and returns their version.
// Both LVM2 backends are skipped at registry construction when this fails,
// leaving dispatch to other backends.
func Detect(ctx context.Context, run cmdrun.Runner) (string, error) {
	if _, err := cmdrun.LookPath("lvm"); err != nil {
		return "", fmt.Errorf("lvm binary not found on PATH: %w", err)
	}
	out, err := run.Run(ctx, "lvm", "version")
	if err != nil {
		return "", fmt.Errorf("lvm version: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if m := lvmVersionRegexp.FindStringSubmatch(line); len(m) == 2 {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("could not parse lvm version output")
}
