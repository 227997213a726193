package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"snapset/src/retention"
	"snapset/src/safety"
	"snapset/src/snapset"
)

func newPruneCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		maxAge        time.Duration
		maxPerProfile int
		all           bool
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete expired snapshot sets and reclaim orphaned records",
		Long: `Apply the retention policy: delete eligible sets oldest first, then
reclaim member records orphaned by interrupted deletions. Without flags the
policy comes from the configuration file. Only sets created with --autogc
are considered unless --all is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvFunc(cmd)
			if err != nil {
				return err
			}
			pol := retention.Policy{
				MaxAge:        env.cfg.Retention.MaxAge,
				MaxPerProfile: env.cfg.Retention.MaxPerProfile,
				AutoGCOnly:    env.cfg.Retention.AutoGCOnly,
			}
			if maxAge > 0 {
				pol.MaxAge = maxAge
			}
			if maxPerProfile > 0 {
				pol.MaxPerProfile = maxPerProfile
			}
			if all {
				pol.AutoGCOnly = false
			}

			sets, err := env.mgr.Sets(snapset.Selection{})
			if err != nil {
				return err
			}
			now := time.Now()
			victims := retention.Evaluate(pol, sets, now)

			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tUUID\tCREATED\tPROFILE\tACTION")
			for _, set := range victims {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\tdelete\n",
					set.Name, set.ID, humanize.Time(set.CreatedAt), set.Profile)
			}
			_ = tw.Flush()

			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				return nil
			}
			if len(victims) > 0 {
				ok, err := safety.Confirm(opts, os.Stdin, stdout,
					fmt.Sprintf("Delete %d snapshot set(s)?", len(victims)))
				if err != nil || !ok {
					return err
				}
			}

			col := &retention.Collector{Policy: pol, Deleter: env.mgr, Log: env.log}
			rep, err := col.Collect(cmdContext(cmd), sets, now)
			if len(rep.Deleted) > 0 {
				fmt.Fprintf(stdout, "Deleted %d snapshot set(s)\n", len(rep.Deleted))
			}
			if rep.Orphans > 0 {
				fmt.Fprintf(stdout, "Reclaimed %d orphaned record(s)\n", rep.Orphans)
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Override: delete sets older than this, e.g. 720h")
	cmd.Flags().IntVar(&maxPerProfile, "max-per-profile", 0, "Override: keep at most N sets per profile")
	cmd.Flags().BoolVar(&all, "all", false, "Consider all sets, not only those created with --autogc")
	return cmd
}
