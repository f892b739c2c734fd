// Package cmd implements the dexkeep CLI commands using Cobra.
// It provides commands for marking ownership, inspecting buckets, and
// synchronizing the local collection with a remote store.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jmgilman/dexkeep/internal/collection"
	"github.com/jmgilman/dexkeep/internal/config"
	"github.com/jmgilman/dexkeep/internal/remote"
	"github.com/jmgilman/dexkeep/internal/slogger"
	"github.com/jmgilman/dexkeep/internal/store"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// annotationDeps controls what PersistentPreRunE prepares for a command.
const annotationDeps = "dexkeep/deps"

// Values for annotationDeps. Commands without the annotation get the
// collection manager.
const (
	depsNone   = "none"
	depsConfig = "config"
)

// appConfig holds the loaded application configuration.
var appConfig *config.Config

// configLoader is used for reading and writing single keys.
var configLoader *config.Loader

// configErr records why the configuration could not be loaded.
var configErr error

// verbosity is the count of -v flags.
var verbosity int

var rootCmd = &cobra.Command{
	Use:   "dexkeep",
	Short: "Track collectible ownership across devices",
	Long: `dexkeep tracks which copies of each collectible variant you own, have up
for trade or want, and keeps that state in sync with a remote store.

Every copy has a stable instance id ("<variant key>_<uuid>"). Marking a
variant updates its copies and their siblings; syncing pushes queued writes
and merges the remote snapshot with last-writer-wins semantics.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		deps := commandDeps(cmd)
		if deps == depsNone {
			return nil
		}
		if appConfig == nil {
			return fmt.Errorf("load config: %w", configErr)
		}

		format, err := slogger.ParseFormat(appConfig.Log.Format)
		if err != nil {
			return err
		}
		logger := slogger.New(slogger.Config{
			Verbosity: verbosity,
			Format:    format,
		})

		// Store dependencies in context for subcommands
		ctx := cmd.Context()
		ctx = slogger.WithLogger(ctx, logger)
		ctx = WithConfig(ctx, appConfig)
		ctx = WithLoader(ctx, configLoader)

		if deps != depsConfig {
			repo, mgr, err := openManager(ctx, appConfig)
			if err != nil {
				return err
			}
			ctx = WithRepository(ctx, repo)
			ctx = WithManager(ctx, mgr)
		}

		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
		if repo := RepositoryFromContext(cmd.Context()); repo != nil {
			if err := repo.Close(); err != nil {
				return fmt.Errorf("close store: %w", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")
}

func initConfig() {
	loader, err := config.NewLoader()
	if err != nil {
		configErr = err
		return
	}
	configLoader = loader

	cfg, err := loader.Load()
	if err != nil {
		configErr = err
		return
	}
	appConfig = cfg
}

// commandDeps returns the nearest annotationDeps value from cmd up to root.
func commandDeps(cmd *cobra.Command) string {
	for c := cmd; c != nil; c = c.Parent() {
		if deps, ok := c.Annotations[annotationDeps]; ok {
			return deps
		}
	}
	return ""
}

// openManager opens the repository and collection manager described by cfg.
func openManager(ctx context.Context, cfg *config.Config) (store.Repository, *collection.Manager, error) {
	repo, err := store.Open(ctx, cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	source, err := catalogSource(cfg)
	if err != nil {
		repo.Close() //nolint:errcheck
		return nil, nil, err
	}

	mgr, err := collection.Open(ctx, repo, source, collection.ManagerConfig{
		Owner:      resolveOwner(ctx, cfg),
		CatalogTTL: cfg.Catalog.TTL,
	})
	if err != nil {
		repo.Close() //nolint:errcheck
		if errors.Is(err, store.ErrStoreUnavailable) {
			return nil, nil, fmt.Errorf("open collection at %s: %w", cfg.Storage.Path, err)
		}
		return nil, nil, fmt.Errorf("open collection: %w", err)
	}
	return repo, mgr, nil
}

// catalogSource returns where variants are refreshed from, or nil when only
// the cached copy is available.
func catalogSource(cfg *config.Config) (variant.Source, error) {
	if u := cfg.CatalogURL(); u != "" {
		client, err := remote.NewClient(remote.Config{
			URL:        cfg.Remote.URL,
			CatalogURL: u,
			Timeout:    cfg.Remote.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("catalog client: %w", err)
		}
		return client, nil
	}
	if cfg.Catalog.Source != "" {
		return variant.NewFileSource(cfg.Catalog.Source), nil
	}
	return nil, nil
}

// resolveOwner returns the actor new instances are attributed to. Without a
// remote there is nobody to attribute them to.
func resolveOwner(ctx context.Context, cfg *config.Config) string {
	if cfg.Remote.URL == "" && os.Getenv(envToken) == "" {
		return ""
	}
	cred, err := loadCredential(cfg)
	if err != nil {
		slogger.L(ctx).Debug("no credential for owner", "error", err)
		return ""
	}
	actor, err := remote.ActorFromToken(cred.Token)
	if err != nil {
		slogger.L(ctx).Debug("unreadable token", "error", err)
		return ""
	}
	return actor
}

// dataDir is the directory holding the local state file.
func dataDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Storage.Path)
}
