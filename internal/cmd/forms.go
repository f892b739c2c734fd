package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var megaCmd = &cobra.Command{
	Use:   "mega <instance-id>",
	Short: "Mega evolve an owned instance",
	Long: `Mega evolve an owned instance. Only one copy per species can be mega
evolved at a time; any other evolved copy reverts.

Use --revert to return the copy to its base form.`,
	Example: `  # Mega evolve into the X form
  dexkeep mega 0006-default_<uuid> --form x

  # Revert
  dexkeep mega 0006-default_<uuid> --revert`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInstanceID(args[0])
		if err != nil {
			return err
		}

		form, err := cmd.Flags().GetString("form")
		if err != nil {
			return fmt.Errorf("get form flag: %w", err)
		}
		revert, err := cmd.Flags().GetBool("revert")
		if err != nil {
			return fmt.Errorf("get revert flag: %w", err)
		}

		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		if revert {
			mut, err := mgr.MegaRevert(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("revert %s: %w", id, err)
			}
			return printMutation(cmd.OutOrStdout(), "reverted", mut)
		}

		mut, err := mgr.MegaEvolve(cmd.Context(), id, form)
		if err != nil {
			return fmt.Errorf("mega evolve %s: %w", id, err)
		}
		return printMutation(cmd.OutOrStdout(), "mega evolved", mut)
	},
}

var fuseCmd = &cobra.Command{
	Use:   "fuse <base-id> <partner-id>",
	Short: "Fuse two owned instances",
	Long: `Fuse a base instance with a partner. The partner is disabled while the
fusion lasts and both copies record the fusion.`,
	Example: `  dexkeep fuse 0800-default_<uuid> 0791-default_<uuid> --fusion 1`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := parseInstanceID(args[0])
		if err != nil {
			return err
		}
		partner, err := parseInstanceID(args[1])
		if err != nil {
			return err
		}

		fusionID, err := cmd.Flags().GetInt("fusion")
		if err != nil {
			return fmt.Errorf("get fusion flag: %w", err)
		}
		form, err := cmd.Flags().GetString("form")
		if err != nil {
			return fmt.Errorf("get form flag: %w", err)
		}

		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		mut, err := mgr.Fuse(cmd.Context(), base, partner, fusionID, form)
		if err != nil {
			return fmt.Errorf("fuse %s: %w", base, err)
		}
		return printMutation(cmd.OutOrStdout(), "fused", mut)
	},
}

var unfuseCmd = &cobra.Command{
	Use:     "unfuse <base-id>",
	Short:   "Split a fused instance",
	Example: `  dexkeep unfuse 0800-default_<uuid>`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := parseInstanceID(args[0])
		if err != nil {
			return err
		}

		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		mut, err := mgr.Unfuse(cmd.Context(), base)
		if err != nil {
			return fmt.Errorf("unfuse %s: %w", base, err)
		}
		return printMutation(cmd.OutOrStdout(), "unfused", mut)
	},
}

func init() {
	rootCmd.AddCommand(megaCmd)
	rootCmd.AddCommand(fuseCmd)
	rootCmd.AddCommand(unfuseCmd)

	megaCmd.Flags().String("form", "", "mega form (e.g. x or y) for species with several")
	megaCmd.Flags().Bool("revert", false, "revert to the base form")
	megaCmd.MarkFlagsMutuallyExclusive("form", "revert")

	fuseCmd.Flags().Int("fusion", 0, "fusion id from the catalog")
	fuseCmd.Flags().String("form", "", "fusion form name")
	//nolint:errcheck // only fails for unknown flags
	fuseCmd.MarkFlagRequired("fusion")
}
