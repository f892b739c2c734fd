package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmgilman/dexkeep/internal/instance"
)

var showCmd = &cobra.Command{
	Use:   "show <instance-id>",
	Short: "Show one instance as JSON",
	Example: `  dexkeep show 0025-default_3f2b9c1e-8a4d-4c6e-9f10-2b7d5e8a1c44`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInstanceID(args[0])
		if err != nil {
			return err
		}

		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		inst, ok := mgr.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", instance.ErrInstanceNotFound, id)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(inst)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
