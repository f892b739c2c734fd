package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/dexkeep/internal/logging"
)

// Default poll interval for following logs.
const defaultLogPollInterval = 100 * time.Millisecond

var logsCmd = &cobra.Command{
	Use:   "logs [run-id]",
	Short: "View the log of a sync run",
	Long: `View the log written by a sync run. Without a run id the most recent
run is shown.`,
	Example: `  # Last 100 lines of the latest sync
  dexkeep logs

  # Follow a running 'dexkeep sync --watch'
  dexkeep logs -f

  # List recorded runs
  dexkeep logs --list`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationDeps: depsConfig},
	RunE:        runLogsCmd,
}

func runLogsCmd(cmd *cobra.Command, args []string) error {
	follow, err := cmd.Flags().GetBool("follow")
	if err != nil {
		return fmt.Errorf("get follow flag: %w", err)
	}
	lines, err := cmd.Flags().GetInt("lines")
	if err != nil {
		return fmt.Errorf("get lines flag: %w", err)
	}
	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return fmt.Errorf("get list flag: %w", err)
	}

	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	paths := logging.NewPathManager(cfg.Storage.Logs)

	if list {
		runs, err := paths.ListRuns(syncLogKind)
		if err != nil {
			return err
		}
		for _, run := range runs {
			if _, err := fmt.Fprintln(out, run); err != nil {
				return err
			}
		}
		return nil
	}

	var runID string
	if len(args) == 1 {
		runID = args[0]
	}
	reader := logging.NewReader(paths)
	runID, err = reader.Resolve(syncLogKind, runID)
	if err != nil {
		return err
	}

	if follow {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return reader.Follow(ctx, syncLogKind, runID, out, lines, defaultLogPollInterval)
	}

	logLines, err := reader.Tail(syncLogKind, runID, lines)
	if err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	for _, line := range logLines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().BoolP("follow", "f", false, "follow log output in real-time")
	logsCmd.Flags().IntP("lines", "n", logging.DefaultTailLines, "number of lines to show")
	logsCmd.Flags().Bool("list", false, "list recorded runs")
}
