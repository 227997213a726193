package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newRenameCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "rename OLD-NAME NEW-NAME",
		Short: "Rename a snapshot set",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvFunc(cmd)
			if err != nil {
				return err
			}
			set, err := env.mgr.RenameSet(cmdContext(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Renamed snapshot set %s to %s (%s)\n", args[0], set.Name, set.ID)
			return nil
		},
	}
}
