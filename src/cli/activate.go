package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"snapset/src/snapset"
)

func newActivateCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "activate [NAME|UUID]",
		Short: "Activate the snapshots of matching sets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivation(cmd, stdout, args, "Activated",
				func(e *env, sel snapset.Selection) (int, error) {
					return e.mgr.Activate(cmdContext(cmd), sel)
				})
		},
	}
}

func newDeactivateCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate [NAME|UUID]",
		Short: "Deactivate the snapshots of matching sets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivation(cmd, stdout, args, "Deactivated",
				func(e *env, sel snapset.Selection) (int, error) {
					return e.mgr.Deactivate(cmdContext(cmd), sel)
				})
		},
	}
}

func newAutoactivateCmd(stdout, stderr io.Writer) *cobra.Command {
	var enable bool
	cmd := &cobra.Command{
		Use:   "autoactivate [NAME|UUID]",
		Short: "Set whether snapshots of matching sets activate at boot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActivation(cmd, stdout, args, "Updated",
				func(e *env, sel snapset.Selection) (int, error) {
					return e.mgr.SetAutoactivate(cmdContext(cmd), sel, enable)
				})
		},
	}
	cmd.Flags().BoolVar(&enable, "enable", true, "Enable (true) or disable (false) boot-time activation")
	return cmd
}

func runActivation(cmd *cobra.Command, stdout io.Writer, args []string, verb string,
	op func(*env, snapset.Selection) (int, error)) error {
	var sel snapset.Selection
	if len(args) == 1 {
		sel = snapset.ParseIdentifier(args[0])
	}
	env, err := buildEnvFunc(cmd)
	if err != nil {
		return err
	}
	n, err := op(env, sel)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s %d snapshot set(s)\n", verb, n)
	return nil
}
