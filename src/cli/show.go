package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"snapset/src/manager"
	"snapset/src/snapset"
)

func newShowCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME|UUID",
		Short: "Show one snapshot set with live member state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvFunc(cmd)
			if err != nil {
				return err
			}
			set, infos, err := env.mgr.SetInfo(cmdContext(cmd), snapset.ParseIdentifier(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Name:       %s\n", set.Name)
			fmt.Fprintf(stdout, "UUID:       %s\n", set.ID)
			fmt.Fprintf(stdout, "Status:     %s\n", set.EffectiveStatus())
			fmt.Fprintf(stdout, "Created:    %s (%s)\n", set.CreatedAt.Format("2006-01-02 15:04:05 MST"), humanize.Time(set.CreatedAt))
			if set.Profile != "" {
				fmt.Fprintf(stdout, "Profile:    %s\n", set.Profile)
			}
			if mps := set.MountPoints(); len(mps) > 0 {
				fmt.Fprintf(stdout, "Mounts:     %s\n", strings.Join(mps, " "))
			}
			if set.BootEntry != "" {
				fmt.Fprintf(stdout, "Boot entry: %s\n", set.BootEntry)
			}
			if set.RollbackEntry != "" {
				fmt.Fprintf(stdout, "Rollback:   %s\n", set.RollbackEntry)
			}
			fmt.Fprintln(stdout)
			return renderInfoTable(stdout, infos)
		},
	}
}

func renderInfoTable(w io.Writer, infos []manager.MemberInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VOLUME\tMOUNT\tSNAPSHOT\tSIZE\tUSED\tACTIVE")
	for _, mi := range infos {
		size, used, active := humanize.IBytes(mi.Record.Size), "-", "-"
		if mi.Err == nil && mi.Live.Size > 0 {
			size = humanize.IBytes(mi.Live.Size)
			used = fmt.Sprintf("%.1f%%", float64(mi.Live.Used)/float64(mi.Live.Size)*100)
			active = fmt.Sprintf("%t", mi.Live.Active)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			mi.Record.VolumeID, mi.Record.MountPoint, mi.Record.Handle.Name, size, used, active)
	}
	return tw.Flush()
}
