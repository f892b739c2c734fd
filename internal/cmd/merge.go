package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/slogger"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <file>",
	Short: "Merge a snapshot file into the collection",
	Long: `Merge a snapshot exported from another device (or fetched from the
remote) into the local collection.

Records are merged by instance id; the copy with the newer last_update wins.
With --actor, records attributed to anyone else are ignored on both sides.
Use "-" to read from stdin.`,
	Example: `  dexkeep export > laptop.json
  dexkeep merge laptop.json --actor ash`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := cmd.Flags().GetString("actor")
		if err != nil {
			return fmt.Errorf("get actor flag: %w", err)
		}

		snap, err := readSnapshot(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}

		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		report, err := mgr.Reconcile(cmd.Context(), snap, actor)
		if err != nil {
			return fmt.Errorf("merge: %w", err)
		}

		log := slogger.L(cmd.Context())
		for _, id := range report.Cleared {
			log.Debug("cleared duplicate placeholder", "id", id)
		}
		for _, id := range report.Dropped {
			log.Debug("dropped stale placeholder", "id", id)
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(),
			"merged %d records: %d superseded, %d filtered, %d dropped, %d cleared\n",
			snap.Len(), len(report.Superseded), len(report.Filtered), len(report.Dropped), len(report.Cleared))
		return err
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the collection snapshot as JSON",
	Example: `  dexkeep export --output backup.json`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return fmt.Errorf("get output flag: %w", err)
		}

		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if output != "" && output != "-" {
			//nolint:gosec // G304: output path is chosen by the user
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(mgr.Snapshot()); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		return nil
	},
}

// readSnapshot decodes a snapshot from path, or stdin for "-".
func readSnapshot(stdin io.Reader, path string) (instance.Snapshot, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		//nolint:gosec // G304: path is chosen by the user
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return instance.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap instance.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return instance.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Instances == nil {
		snap = instance.NewSnapshot()
	}
	return snap, nil
}

func init() {
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(exportCmd)

	mergeCmd.Flags().String("actor", "", "only merge records owned by this user")
	exportCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
}
