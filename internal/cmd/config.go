package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmgilman/dexkeep/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View and modify configuration",
	Long: `View and modify dexkeep configuration.

With no arguments, displays all configuration.
With one argument, displays the value for the specified key.
With two arguments, sets the value for the specified key.`,
	Example: `  # Show all config
  dexkeep config

  # Show value for a specific key
  dexkeep config storage.backend

  # Switch to the SQLite backend
  dexkeep config storage.backend sqlite

  # Open config file in editor
  dexkeep config --edit`,
	Args:        cobra.RangeArgs(0, 2),
	Annotations: map[string]string{annotationDeps: depsNone},
	RunE: func(cmd *cobra.Command, args []string) error {
		editFlag, err := cmd.Flags().GetBool("edit")
		if err != nil {
			return fmt.Errorf("get edit flag: %w", err)
		}

		loader, err := config.NewLoader()
		if err != nil {
			return fmt.Errorf("init config loader: %w", err)
		}
		// Load creates the file if missing
		cfg, err := loader.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		out := cmd.OutOrStdout()
		if editFlag {
			return runEdit(loader)
		}

		switch len(args) {
		case 0:
			return runShowAll(out, cfg)
		case 1:
			return runShowKey(out, loader, args[0])
		default:
			return runSetKey(out, loader, args[0], args[1])
		}
	},
}

func runEdit(loader *config.Loader) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return config.ErrNoEditor
	}

	//nolint:gosec // G204: the editor is chosen by the user
	editorCmd := exec.Command(editor, loader.Path())
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runShowAll(w io.Writer, cfg *config.Config) error {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	_, err = w.Write(out)
	return err
}

func runShowKey(w io.Writer, loader *config.Loader, key string) error {
	value, err := loader.Get(key)
	if err != nil {
		return err
	}

	switch v := value.(type) {
	case nil:
		_, err = fmt.Fprintln(w)
	case string:
		_, err = fmt.Fprintln(w, v)
	case map[string]any, []any:
		out, merr := yaml.Marshal(v)
		if merr != nil {
			return fmt.Errorf("marshal value: %w", merr)
		}
		_, err = w.Write(out)
	default:
		_, err = fmt.Fprintln(w, value)
	}
	return err
}

func runSetKey(w io.Writer, loader *config.Loader, key, value string) error {
	if err := loader.Set(key, value); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Set %s = %s\n", key, value)
	return err
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().Bool("edit", false, "open config file in $EDITOR")
}
