// Package cli implements the snapset command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// usageError marks errors caused by bad invocation rather than a failed
// operation; they exit with status 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// NewRootCmd returns the root cobra command for the snapset CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "snapset",
		Short:         "Manage atomic multi-volume snapshot sets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	addGlobalFlags(cmd)

	cmd.AddCommand(newVersionCmd(stdout))
	cmd.AddCommand(newCreateCmd(stdout, stderr))
	cmd.AddCommand(newListCmd(stdout, stderr))
	cmd.AddCommand(newShowCmd(stdout, stderr))
	cmd.AddCommand(newDeleteCmd(stdout, stderr))
	cmd.AddCommand(newRevertCmd(stdout, stderr))
	cmd.AddCommand(newRenameCmd(stdout, stderr))
	cmd.AddCommand(newResizeCmd(stdout, stderr))
	cmd.AddCommand(newActivateCmd(stdout, stderr))
	cmd.AddCommand(newDeactivateCmd(stdout, stderr))
	cmd.AddCommand(newAutoactivateCmd(stdout, stderr))
	cmd.AddCommand(newPruneCmd(stdout, stderr))
	cmd.AddCommand(newProfileCmd(stdout, stderr))

	return cmd
}

// Execute runs the CLI with the process stdio. Operation failures exit 1;
// invocation mistakes exit 2.
func Execute() int {
	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ue *usageError
		if errors.As(err, &ue) {
			return 2
		}
		return 1
	}
	return 0
}
