package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List writes waiting to be synced",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		pending := mgr.Pending()
		if len(pending) == 0 {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "No pending writes")
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if _, err := fmt.Fprintln(w, "SEQ\tINSTANCE\tOP\tUPDATED"); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, d := range pending {
			op := "set"
			if d.Deleted {
				op = "delete"
			}
			updated := time.UnixMilli(d.Timestamp).Format(time.RFC3339)
			if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.Seq, d.InstanceID, op, updated); err != nil {
				return fmt.Errorf("write delta: %w", err)
			}
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
}
