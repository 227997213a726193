package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"snapset/src/backend"
	"snapset/src/manager"
	"snapset/src/volspec"
)

func newCreateCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		size        string
		profile     string
		noBootEntry bool
		autogc      bool
	)
	cmd := &cobra.Command{
		Use:   "create NAME VOLUME...",
		Short: "Create a snapshot set across one or more volumes",
		Long: `Create one snapshot per volume, atomically: either every member is
created or none survives. Volumes are given as '[backend:]source[@mountpoint]',
e.g. 'vg0/root@/' or 'lvm2-cow:vg0/swap'.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return usageErrorf("create requires a set name and at least one volume")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			vols, err := volspec.ParseAll(args[1:])
			if err != nil {
				return usageErrorf("%v", err)
			}
			policy := backend.SizePolicy{}
			if size != "" {
				policy, err = backend.ParseSizePolicy(size)
				if err != nil {
					return usageErrorf("%v", err)
				}
			}
			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				fmt.Fprintf(stdout, "Would create snapshot set %q with %d member(s)\n", args[0], len(vols))
				for _, vol := range vols {
					fmt.Fprintf(stdout, "  %s\n", volspec.String(vol))
				}
				return nil
			}
			env, err := buildEnvFunc(cmd)
			if err != nil {
				return err
			}
			set, err := env.mgr.CreateSet(cmdContext(cmd), args[0], vols, manager.CreateOptions{
				Profile:     profile,
				SizePolicy:  policy,
				NoBootEntry: noBootEntry,
				AutoGC:      autogc,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Created snapshot set %s (%s) with %d member(s)\n",
				set.Name, set.ID, len(set.Snapshots))
			if set.BootEntry != "" {
				fmt.Fprintf(stdout, "Boot entry: %s\n", set.BootEntry)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&size, "size", "", "Snapshot size policy, e.g. '20%' or '2GiB'")
	cmd.Flags().StringVar(&profile, "profile", "", "Boot profile name (default: resolve by kernel identity)")
	cmd.Flags().BoolVar(&noBootEntry, "no-boot-entry", false, "Skip boot entry creation")
	cmd.Flags().BoolVar(&autogc, "autogc", false, "Mark the set eligible for automatic garbage collection")
	return cmd
}
