// Package safety gates destructive operations behind confirmation.
package safety

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Options carries the global safety flags.
type Options struct {
	// DryRun reports planned actions without making changes.
	DryRun bool
	// Yes answers prompts affirmatively, for non-interactive use.
	Yes bool
	// Force proceeds past checks that would normally refuse, e.g.
	// deleting a set that still has a boot entry.
	Force bool
}

// Confirm prompts the user to confirm a destructive action.
// - If opts.DryRun is true, it returns false without prompting; no action
//   should be taken.
// - If opts.Yes or opts.Force is true, it returns true without prompting.
// The caller decides what to do with the result.
func Confirm(opts Options, in io.Reader, out io.Writer, question string) (bool, error) {
	if opts.DryRun {
		return false, nil
	}
	if opts.Yes || opts.Force {
		return true, nil
	}
	if out != nil {
		fmt.Fprintf(out, "%s [y/N]: ", strings.TrimSpace(question))
	}
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	ans := strings.TrimSpace(strings.ToLower(line))
	return ans == "y" || ans == "yes", nil
}
