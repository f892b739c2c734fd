package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmgilman/dexkeep/internal/version"
)

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Display version information",
	Long:        `Display the version, commit, and build date of dexkeep.`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationDeps: depsNone},
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
