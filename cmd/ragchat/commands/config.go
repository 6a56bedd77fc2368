package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/config"
)

// NewConfigCmd constructs the `ragchat config` command, which lists every
// setting with its effective value. Secrets are shown as set/unset.
func NewConfigCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tVALUE\tDESCRIPTION")
			for _, o := range config.Options {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", o.Key, config.Display(o), o.Description)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if loadedConfigPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nconfig file: %s\n", loadedConfigPath)
			}

			if check {
				if _, err := config.FromEnv(); err != nil {
					return fmt.Errorf("invalid configuration:\n%w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Validate the configuration and exit non-zero on errors")

	return cmd
}
