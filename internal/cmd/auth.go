package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmgilman/dexkeep/internal/auth"
	"github.com/jmgilman/dexkeep/internal/keychain"
	"github.com/jmgilman/dexkeep/internal/prompt"
	"github.com/jmgilman/dexkeep/internal/slogger"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage remote store credentials",
	Long: `Manage the credential used to talk to the remote store.

The credential is a bearer token issued by the remote (see 'dexkeep token'
for the reference receiver). It is kept in the system keyring; set
DEXKEEP_TOKEN to bypass the keyring entirely.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a token for the remote store",
	Long: `Store a remote URL and bearer token in the system keyring.

The token is read from DEXKEEP_TOKEN when set, otherwise it is prompted
for. The username in the token decides which remote records are merged
into the local collection.`,
	Example: `  # Log in interactively
  dexkeep auth login --url https://dex.example.com

  # Log in from a script
  DEXKEEP_TOKEN=$(cat token) dexkeep auth login --url https://dex.example.com`,
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationDeps: depsConfig},
	RunE:        runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:         "logout",
	Short:       "Remove the stored token",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationDeps: depsConfig},
	RunE:        runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:         "status",
	Short:       "Show the current credential",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationDeps: depsConfig},
	RunE:        runAuthStatus,
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}
	remoteURL, err := cmd.Flags().GetString("url")
	if err != nil {
		return fmt.Errorf("get url flag: %w", err)
	}

	if remoteURL == "" {
		remoteURL = cfg.Remote.URL
	}
	remoteURL, token, err := loginDetails(prompt.New(), remoteURL, os.Getenv(envToken))
	if err != nil {
		return err
	}

	cred := auth.Credential{URL: remoteURL, Token: token}
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("invalid credential: %w", err)
	}
	claims, err := auth.ParseUnverified(token)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	kc, err := openKeychain(cfg)
	if err != nil {
		return err
	}
	if err := auth.StoreCredential(kc, cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	if cfg.Remote.URL == "" {
		if loader := LoaderFromContext(cmd.Context()); loader != nil {
			if err := loader.Set("remote.url", remoteURL); err != nil {
				slogger.L(cmd.Context()).Warn("failed to save remote url", "error", err)
			}
		}
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", remoteURL, claims.Actor())
	return err
}

func runAuthLogout(cmd *cobra.Command, _ []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("get yes flag: %w", err)
	}

	ok, err := confirmLogout(prompt.New(), yes)
	if err != nil || !ok {
		return err
	}

	kc, err := openKeychain(cfg)
	if err != nil {
		return err
	}
	if err := auth.DeleteCredential(kc); err != nil && !errors.Is(err, keychain.ErrNotFound) {
		return fmt.Errorf("delete credential: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
	return err
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	cfg, err := requireConfig(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	cred, err := loadCredential(cfg)
	if errors.Is(err, auth.ErrNoCredential) {
		_, err := fmt.Fprintln(out, "not logged in")
		return err
	}
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}

	claims, err := auth.ParseUnverified(cred.Token)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	source := "keyring"
	if os.Getenv(envToken) != "" {
		source = envToken
	}
	fmt.Fprintf(out, "remote:  %s\n", cred.URL) //nolint:errcheck
	fmt.Fprintf(out, "user:    %s\n", claims.Actor()) //nolint:errcheck
	fmt.Fprintf(out, "source:  %s\n", source) //nolint:errcheck
	if claims.ExpiresAt != nil {
		expiry := claims.ExpiresAt.Time
		state := "valid"
		if time.Now().After(expiry) {
			state = "expired"
		}
		fmt.Fprintf(out, "expires: %s (%s)\n", expiry.Format(time.RFC3339), state) //nolint:errcheck
	}
	return nil
}

// loginDetails prompts for whichever of the remote URL and token is missing.
func loginDetails(p prompt.Prompter, remoteURL, token string) (string, string, error) {
	var err error
	if remoteURL == "" {
		remoteURL, err = p.Input("Remote URL", "https://dex.example.com")
		if err != nil {
			return "", "", err
		}
	}
	if token == "" {
		token, err = p.Secret("Token")
		if err != nil {
			return "", "", err
		}
	}
	return remoteURL, token, nil
}

func confirmLogout(p prompt.Prompter, yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	return p.Confirm("Remove the stored token?", "Queued writes stay local until you log in again.")
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)

	authLoginCmd.Flags().String("url", "", "remote store URL (defaults to remote.url)")
	authLogoutCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}
