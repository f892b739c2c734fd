package cmd

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmgilman/dexkeep/internal/bucket"
	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/slogger"
)

var listCmd = &cobra.Command{
	Use:   "list [bucket]",
	Short: "List instances by bucket",
	Long: `List instances grouped into the owned, trade, wanted and unowned buckets.

An instance that is owned and up for trade appears in both buckets.
With a bucket argument only that bucket is listed.`,
	Example: `  # List every bucket
  dexkeep list

  # List what is up for trade
  dexkeep list trade`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(bucket.Owned), string(bucket.Trade), string(bucket.Wanted), string(bucket.Unowned)},
	RunE: func(cmd *cobra.Command, args []string) error {
		names := bucket.Names
		if len(args) == 1 {
			name, err := bucket.ParseName(args[0])
			if err != nil {
				return err
			}
			names = []bucket.Name{name}
		}

		disabled, err := cmd.Flags().GetBool("disabled")
		if err != nil {
			return fmt.Errorf("get disabled flag: %w", err)
		}

		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		var opts []bucket.Option
		if disabled {
			opts = append(opts, bucket.WithDisabled())
		}
		view, diags := mgr.Buckets(opts...)
		for _, d := range diags {
			slogger.L(cmd.Context()).Warn("instance not listed", "id", d.ID, "reason", d.Message)
		}

		return writeBuckets(cmd.OutOrStdout(), view, names)
	},
}

// writeBuckets renders the named buckets as a table sorted by instance id.
func writeBuckets(out io.Writer, view bucket.View, names []bucket.Name) error {
	total := 0
	for _, name := range names {
		total += len(view.Bucket(name))
	}
	if total == 0 {
		_, err := fmt.Fprintln(out, "No instances found")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "BUCKET\tINSTANCE\tNAME\tKIND\tNICKNAME"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, name := range names {
		items := view.Bucket(name)
		ids := make([]identity.InstanceID, 0, len(items))
		for id := range items {
			ids = append(ids, id)
		}
		slices.SortFunc(ids, func(a, b identity.InstanceID) int {
			switch {
			case a.Less(b):
				return -1
			case b.Less(a):
				return 1
			default:
				return 0
			}
		})

		for _, id := range ids {
			item := items[id]
			if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				name, id, item.Variant.Name, item.Variant.Kind, item.Instance.Details.Nickname); err != nil {
				return fmt.Errorf("write instance: %w", err)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().Bool("disabled", false, "include disabled instances")
}
