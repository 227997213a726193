package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"snapset/src/backend"
	"snapset/src/snapset"
)

func newResizeCmd(stdout, stderr io.Writer) *cobra.Command {
	var size string
	cmd := &cobra.Command{
		Use:   "resize NAME|UUID",
		Short: "Grow the snapshot storage of a snapshot set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if size == "" {
				return usageErrorf("resize requires --size")
			}
			policy, err := backend.ParseSizePolicy(size)
			if err != nil {
				return usageErrorf("%v", err)
			}
			env, err := buildEnvFunc(cmd)
			if err != nil {
				return err
			}
			sel := snapset.ParseIdentifier(args[0])
			n, err := env.mgr.ResizeSet(cmdContext(cmd), sel, policy)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Resized %d snapshot set(s) to %s\n", n, policy)
			return nil
		},
	}
	cmd.Flags().StringVar(&size, "size", "", "New snapshot size policy, e.g. 30% or 4GiB")
	return cmd
}
