package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/dexkeep/internal/auth"
	"github.com/jmgilman/dexkeep/internal/config"
	"github.com/jmgilman/dexkeep/internal/receiver"
	"github.com/jmgilman/dexkeep/internal/slogger"
	"github.com/jmgilman/dexkeep/internal/variant"
)

// tokenIssuer is the issuer claim of tokens signed by the receiver.
const tokenIssuer = "dexkeep"

var errNoSecret = errors.New("receiver.secret is not set (or set DEXKEEP_SECRET)")

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference remote store",
	Long: `Run a reference remote store that accepts batched updates and serves
per-user snapshots.

Requests are authenticated with HS256 tokens signed with receiver.secret;
issue them with 'dexkeep token'. Each user's snapshot is stored under
receiver.data using the configured storage backend.`,
	Example: `  # Serve on the configured address
  DEXKEEP_SECRET=change-me dexkeep serve

  # Keep everything in memory
  dexkeep serve --memory --addr 127.0.0.1:9000`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationDeps: depsConfig},
	RunE:        runServeCmd,
}

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Issue a token for the reference remote store",
	Example: `  # Issue a token and log in with it
  DEXKEEP_TOKEN=$(dexkeep token ash) dexkeep auth login`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationDeps: depsConfig},
	RunE:        runTokenCmd,
}

func tokenService(cfg *config.Config) (auth.TokenService, error) {
	if cfg.Receiver.Secret == "" {
		return auth.TokenService{}, errNoSecret
	}
	return auth.TokenService{
		Secret:   []byte(cfg.Receiver.Secret),
		Issuer:   tokenIssuer,
		Duration: cfg.Receiver.TokenTTL,
	}, nil
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}
	addr, err := cmd.Flags().GetString("addr")
	if err != nil {
		return fmt.Errorf("get addr flag: %w", err)
	}
	memory, err := cmd.Flags().GetBool("memory")
	if err != nil {
		return fmt.Errorf("get memory flag: %w", err)
	}
	if addr == "" {
		addr = cfg.Receiver.Addr
	}

	tokens, err := tokenService(cfg)
	if err != nil {
		return err
	}

	var backend receiver.Backend = receiver.NewMemoryBackend()
	if !memory {
		repos := receiver.NewRepositoryBackend(cfg.Receiver.Data, cfg.Storage.Backend)
		defer repos.Close() //nolint:errcheck
		backend = repos
	}

	var catalog variant.Source
	if cfg.Catalog.Source != "" && cfg.CatalogURL() == "" {
		catalog = variant.NewFileSource(cfg.Catalog.Source)
	}

	format, err := slogger.ParseFormat(cfg.Log.Format)
	if err != nil {
		return err
	}
	logger := slogger.New(slogger.Config{
		Verbosity:  max(verbosity, 1),
		Format:     format,
		Timestamps: true,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := receiver.New(receiver.Config{
		Addr:    addr,
		Tokens:  tokens,
		Backend: backend,
		Catalog: catalog,
		Logger:  logger,
	})
	return srv.ListenAndServe(ctx)
}

func runTokenCmd(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}
	ttl, err := cmd.Flags().GetDuration("ttl")
	if err != nil {
		return fmt.Errorf("get ttl flag: %w", err)
	}

	tokens, err := tokenService(cfg)
	if err != nil {
		return err
	}
	if ttl > 0 {
		tokens.Duration = ttl
	}

	token, expiry, err := tokens.Sign(args[0])
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	slogger.L(cmd.Context()).Info("issued token", "user", args[0], "expires", expiry.Format(time.RFC3339))

	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)

	serveCmd.Flags().String("addr", "", "listen address (defaults to receiver.addr)")
	serveCmd.Flags().Bool("memory", false, "keep snapshots in memory only")
	tokenCmd.Flags().Duration("ttl", 0, "token lifetime (defaults to receiver.token_ttl)")
}
