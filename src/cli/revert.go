package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"snapset/src/safety"
	"snapset/src/snapset"
)

func newRevertCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "revert NAME|UUID",
		Short: "Revert every volume in a set to its snapshot",
		Long: `Merge every member snapshot back into its origin volume, in member
order. All members must support revert and every origin must be unmounted;
an in-use origin aborts the set before any merge starts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvFunc(cmd)
			if err != nil {
				return err
			}
			set, err := env.mgr.FindSet(snapset.ParseIdentifier(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Reverting set %s (%s): %d member(s)\n",
				set.Name, set.ID, len(set.Snapshots))
			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				return nil
			}
			ok, err := safety.Confirm(opts, os.Stdin, stdout,
				fmt.Sprintf("Revert %d volume(s) to snapshot set %q? This discards all changes since %s",
					len(set.Snapshots), set.Name, set.CreatedAt.Format("2006-01-02 15:04:05")))
			if err != nil || !ok {
				return err
			}
			if err := env.mgr.RevertSet(cmdContext(cmd), set.ID); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Reverted snapshot set %s\n", set.Name)
			return nil
		},
	}
}
