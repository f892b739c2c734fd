package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmgilman/dexkeep/internal/slogger"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create placeholders for every catalog variant",
	Long: `Create one unowned placeholder for each catalog variant that has no
instance yet. Running it again only fills in variants added to the catalog
since.`,
	Example: `  # Pull the latest catalog, then fill in new variants
  dexkeep bootstrap --refresh`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		refresh, err := cmd.Flags().GetBool("refresh")
		if err != nil {
			return fmt.Errorf("get refresh flag: %w", err)
		}

		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		if refresh {
			if err := mgr.RefreshCatalog(cmd.Context()); err != nil {
				return fmt.Errorf("refresh catalog: %w", err)
			}
			slogger.L(cmd.Context()).Info("refreshed catalog", "variants", mgr.Catalog().Len())
		}

		created, err := mgr.Bootstrap(cmd.Context())
		if err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "created %s for %d variants\n",
			plural(created, "placeholder", "placeholders"), mgr.Catalog().Len())
		return err
	},
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)

	bootstrapCmd.Flags().Bool("refresh", false, "refresh the catalog from its source first")
}
