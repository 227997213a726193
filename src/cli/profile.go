package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"snapset/src/snapset"
)

func newProfileCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage boot profiles",
	}
	cmd.AddCommand(newProfileListCmd(stdout))
	cmd.AddCommand(newProfileShowCmd(stdout))
	cmd.AddCommand(newProfileSetCmd(stdout))
	cmd.AddCommand(newProfileDeleteCmd(stdout))
	return cmd
}

func newProfileListCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List boot profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvFunc(cmd)
			if err != nil {
				return err
			}
			profiles, err := env.st.Profiles()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tUNAME PATTERN\tKERNEL")
			for _, p := range profiles {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.UnamePattern, p.Kernel)
			}
			return tw.Flush()
		},
	}
}

func newProfileShowCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show one boot profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvFunc(cmd)
			if err != nil {
				return err
			}
			profile, err := env.st.Profile(args[0])
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(profile)
			if err != nil {
				return err
			}
			_, err = stdout.Write(out)
			return err
		},
	}
}

func newProfileSetCmd(stdout io.Writer) *cobra.Command {
	var profile snapset.Profile
	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Create or update a boot profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile.Kernel == "" {
				return usageErrorf("--kernel is required")
			}
			env, err := buildEnvFunc(cmd)
			if err != nil {
				return err
			}
			profile.Name = args[0]
			if err := env.st.WriteProfile(profile); err != nil {
				return err
			}
			// Cached uname resolutions may now pick a different profile.
			if err := env.st.InvalidateResolutionCache(); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Saved profile %s\n", profile.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&profile.UnamePattern, "uname-pattern", "", "Kernel release pattern this profile applies to, e.g. '6.*-generic'")
	cmd.Flags().StringVar(&profile.Kernel, "kernel", "", "Kernel image template, e.g. '/boot/vmlinuz-%{uname}'")
	cmd.Flags().StringVar(&profile.Initramfs, "initramfs", "", "Initramfs template, e.g. '/boot/initrd.img-%{uname}'")
	cmd.Flags().StringVar(&profile.Options, "options", "", "Kernel command line template")
	return cmd
}

func newProfileDeleteCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a boot profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvFunc(cmd)
			if err != nil {
				return err
			}
			if err := env.st.DeleteProfile(args[0]); err != nil {
				return err
			}
			if err := env.st.InvalidateResolutionCache(); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Deleted profile %s\n", args[0])
			return nil
		},
	}
}
