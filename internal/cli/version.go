package cli

import (
	"fmt"

	"github.com/fmueller/semisizer/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			if verbose {
				fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "semisizer v%s\n", info.Version)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "long", "l", false, "Include commit, build date and platform")
	return cmd
}
