package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/dexkeep/internal/auth"
	"github.com/jmgilman/dexkeep/internal/collection"
	"github.com/jmgilman/dexkeep/internal/config"
	"github.com/jmgilman/dexkeep/internal/logging"
	"github.com/jmgilman/dexkeep/internal/names"
	"github.com/jmgilman/dexkeep/internal/remote"
	"github.com/jmgilman/dexkeep/internal/slogger"
	"github.com/jmgilman/dexkeep/internal/spinner"
	"github.com/jmgilman/dexkeep/internal/syncer"
	"github.com/jmgilman/dexkeep/internal/version"
)

const (
	// syncLogKind is the run log directory for sync runs.
	syncLogKind = "sync"

	// keepSyncLogs is how many sync run logs are retained.
	keepSyncLogs = 20
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending writes and merge the remote snapshot",
	Long: `Push queued writes to the remote store and merge the remote snapshot
into the local collection.

Writes the remote accepts are removed from the queue; writes it rejects are
dropped and reported; everything else stays queued for the next sync. Only
records belonging to the logged in user are merged.

With --watch, sync repeats every sync.interval and retries transient
failures with exponential backoff until interrupted. Each run is logged
under storage.logs; see 'dexkeep logs'.`,
	Example: `  # Sync once
  dexkeep sync

  # Keep syncing in the foreground
  dexkeep sync --watch`,
	Args: cobra.NoArgs,
	RunE: runSyncCmd,
}

func runSyncCmd(cmd *cobra.Command, _ []string) error {
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return fmt.Errorf("get watch flag: %w", err)
	}

	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}
	mgr, err := requireManager(cmd.Context())
	if err != nil {
		return err
	}

	cred, err := loadCredential(cfg)
	if errors.Is(err, auth.ErrNoCredential) {
		return errors.New("not logged in: run 'dexkeep auth login' or set " + envToken)
	}
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}

	device, err := deviceName(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	client, err := remote.NewClient(remote.Config{
		URL:      cred.URL,
		Token:    cred.Token,
		Timeout:  cfg.Remote.Timeout,
		Location: map[string]any{"device": device, "client": version.UserAgent()},
	})
	if err != nil {
		return err
	}
	actor, err := client.Actor()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	paths := logging.NewPathManager(cfg.Storage.Logs)
	logPath, err := paths.EnsureRunLog(syncLogKind, logging.NewRunID(time.Now()))
	if err != nil {
		return err
	}
	if err := paths.Prune(syncLogKind, keepSyncLogs-1); err != nil {
		slogger.L(cmd.Context()).Warn("failed to prune sync logs", "error", err)
	}

	run := func(primary io.Writer) error {
		tee, err := logging.NewTeeWriter(primary, logPath)
		if err != nil {
			return err
		}
		defer tee.Close() //nolint:errcheck

		ctx := slogger.WithLogger(cmd.Context(), slogger.New(slogger.Config{
			Verbosity:  max(verbosity, 1),
			Output:     tee,
			Format:     cfg.Log.Format,
			Timestamps: true,
		}))
		slogger.L(ctx).Info("sync started", "remote", cred.URL, "actor", actor, "device", device)

		if watch {
			return watchSync(ctx, cmd.OutOrStdout(), mgr, client, cfg, actor)
		}
		report, err := syncer.New(mgr, client, syncer.Config{Actor: actor}).SyncOnce(ctx)
		if err != nil {
			slogger.L(ctx).Error("sync failed", "error", err)
			return err
		}
		return printReport(cmd.OutOrStdout(), report)
	}

	if watch {
		return run(os.Stderr)
	}
	return spinner.Run(os.Stderr, "syncing", run)
}

// watchSync runs the sync loop until SIGINT or SIGTERM.
func watchSync(ctx context.Context, out io.Writer, mgr *collection.Manager, client *remote.Client, cfg *config.Config, actor string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	agent := syncer.New(mgr, client, syncer.Config{
		Actor:    actor,
		Interval: cfg.Sync.Interval,
		OnSync: func(report syncer.Report, err error) {
			if err == nil {
				printReport(out, report) //nolint:errcheck
			}
		},
	})
	return agent.Run(ctx)
}

func printReport(w io.Writer, r syncer.Report) error {
	_, err := fmt.Fprintf(w, "pushed %d, rejected %d, requeued %d, fetched %d\n",
		r.Pushed, r.Rejected, r.Requeued, r.Fetched)
	return err
}

// deviceName returns the configured device name, generating and saving one
// on first use.
func deviceName(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Sync.Device != "" {
		if err := names.Validate(cfg.Sync.Device); err != nil {
			return "", fmt.Errorf("sync.device: %w", err)
		}
		return cfg.Sync.Device, nil
	}

	name := names.Generate()
	if loader := LoaderFromContext(ctx); loader != nil {
		if err := loader.Set("sync.device", name); err != nil {
			slogger.L(ctx).Warn("failed to save device name", "error", err)
		}
	}
	cfg.Sync.Device = name
	return name, nil
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolP("watch", "w", false, "keep syncing until interrupted")
}
