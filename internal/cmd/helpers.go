package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmgilman/dexkeep/internal/auth"
	"github.com/jmgilman/dexkeep/internal/collection"
	"github.com/jmgilman/dexkeep/internal/config"
	"github.com/jmgilman/dexkeep/internal/identity"
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/keychain"
)

// Environment variables read directly by the CLI.
const (
	envToken           = "DEXKEEP_TOKEN"
	envKeyringPassword = "DEXKEEP_KEYRING_PASSWORD"
)

func requireManager(ctx context.Context) (*collection.Manager, error) {
	mgr := ManagerFromContext(ctx)
	if mgr == nil {
		return nil, errors.New("collection manager not initialized")
	}
	return mgr, nil
}

func requireConfig(ctx context.Context) (*config.Config, error) {
	cfg := ConfigFromContext(ctx)
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// parseInstanceID parses an argument that must name one physical copy.
func parseInstanceID(arg string) (identity.InstanceID, error) {
	id, err := identity.ParseID(arg)
	if err != nil {
		return identity.InstanceID{}, fmt.Errorf("%q is not an instance id (expected <variant>_<uuid>): %w", arg, err)
	}
	return id, nil
}

// openKeychain opens the keyring selected in cfg.
func openKeychain(cfg *config.Config) (keychain.Keychain, error) {
	kc, err := keychain.New(keychain.Config{
		Backend:  cfg.Storage.Keyring,
		FileDir:  filepath.Join(dataDir(cfg), "keyring"),
		Password: os.Getenv(envKeyringPassword),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize credential storage: %w", err)
	}
	return kc, nil
}

// loadCredential returns the remote credential. DEXKEEP_TOKEN takes
// precedence over the keychain; the configured remote URL takes precedence
// over the one stored with the credential.
func loadCredential(cfg *config.Config) (*auth.Credential, error) {
	if token := os.Getenv(envToken); token != "" {
		return &auth.Credential{URL: cfg.Remote.URL, Token: token}, nil
	}

	kc, err := openKeychain(cfg)
	if err != nil {
		return nil, err
	}
	cred, err := auth.LoadCredential(kc, keychain.ErrNotFound)
	if err != nil {
		return nil, err
	}
	if cfg.Remote.URL != "" {
		cred.URL = cfg.Remote.URL
	}
	return cred, nil
}

// printMutation summarizes a mutation on one line.
func printMutation(w io.Writer, verb string, mut instance.Mutation) error {
	if mut.IsEmpty() {
		_, err := fmt.Fprintf(w, "%s: nothing to change\n", verb)
		return err
	}

	var parts []string
	if n := len(mut.Upserts); n > 0 {
		parts = append(parts, plural(n, "instance", "instances")+" updated")
	}
	if n := len(mut.Deletes); n > 0 {
		parts = append(parts, plural(n, "instance", "instances")+" removed")
	}
	target := ""
	if !mut.Target.IsZero() {
		target = " " + mut.Target.String()
	}
	_, err := fmt.Fprintf(w, "%s%s (%s)\n", verb, target, formatList(parts))
	return err
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

// formatList joins strings with commas and "and" before the last item.
func formatList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
