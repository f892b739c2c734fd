package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errViolations makes verify exit non-zero without repeating its output.
var errViolations = errors.New("collection has invariant violations")

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the collection invariants",
	Long: `Check the local collection for broken invariants: more than one
placeholder per variant, trade without ownership, reused identities and
dangling fusion links. Exits non-zero when any are found.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		violations := mgr.Verify()
		if len(violations) == 0 {
			_, err := fmt.Fprintf(out, "ok: %d instances checked\n", mgr.Snapshot().Len())
			return err
		}

		for _, v := range violations {
			if _, err := fmt.Fprintln(out, v.String()); err != nil {
				return err
			}
		}
		return fmt.Errorf("%w: %d found", errViolations, len(violations))
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
