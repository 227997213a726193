package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"snapset/src/safety"
	"snapset/src/snapset"
)

func newDeleteCmd(stdout, stderr io.Writer) *cobra.Command {
	var minAge time.Duration
	cmd := &cobra.Command{
		Use:   "delete [NAME|UUID]",
		Short: "Delete snapshot sets and their storage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sel snapset.Selection
			if len(args) == 1 {
				sel = snapset.ParseIdentifier(args[0])
			}
			sel.MinAge = minAge
			if sel.IsNull() {
				return usageErrorf("delete requires a set name, UUID or --min-age filter")
			}
			env, err := buildEnvFunc(cmd)
			if err != nil {
				return err
			}
			victims, err := env.mgr.Sets(sel)
			if err != nil {
				return err
			}
			if len(victims) == 0 {
				return &snapset.NotFoundError{Kind: "snapshot set", Name: sel.String()}
			}
			for _, set := range victims {
				fmt.Fprintf(stdout, "%s\t%s\t%s\n", set.Name, set.ID, set.EffectiveStatus())
			}
			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				return nil
			}
			ok, err := safety.Confirm(opts, os.Stdin, stdout,
				fmt.Sprintf("Delete %d snapshot set(s) and their storage?", len(victims)))
			if err != nil || !ok {
				return err
			}
			n, err := env.mgr.DeleteSets(cmdContext(cmd), sel)
			if n > 0 {
				fmt.Fprintf(stdout, "Deleted %d snapshot set(s)\n", n)
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&minAge, "min-age", 0, "Delete all sets at least this old, e.g. 72h")
	return cmd
}
