package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmgilman/dexkeep/internal/collection"
	"github.com/jmgilman/dexkeep/internal/instance"
	"github.com/jmgilman/dexkeep/internal/slogger"
)

var markCmd = &cobra.Command{
	Use:   "mark <owned|trade|wanted|unowned> <key>...",
	Short: "Change the ownership status of variants or instances",
	Long: `Change the ownership status of one or more keys.

A key is either a variant key (e.g. "0025-default"), which resolves to the
variant's placeholder or creates a new copy, or an instance id
("0025-default_<uuid>") naming one physical copy.

Sibling copies of the same variant are adjusted so the group keeps at most
one placeholder and a consistent registration flag. Every change is queued
for the next sync.`,
	Example: `  # Mark Pikachu as caught
  dexkeep mark owned 0025-default

  # Put one specific copy up for trade
  dexkeep mark trade 0025-default_3f2b9c1e-8a4d-4c6e-9f10-2b7d5e8a1c44

  # Want several variants at once
  dexkeep mark wanted 0001-default 0004-default 0007-default`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := instance.ParseStatus(args[0])
		if err != nil {
			return err
		}

		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		var failed []error
		for _, key := range args[1:] {
			mut, err := mgr.SetStatus(cmd.Context(), key, status)
			var storeErr *collection.StoreError
			if errors.As(err, &storeErr) {
				// The change is live in memory but was not saved.
				return fmt.Errorf("mark %s: %w", key, err)
			}
			if err != nil {
				slogger.L(cmd.Context()).Debug("mark failed", "key", key, "error", err)
				failed = append(failed, fmt.Errorf("mark %s %s: %w", status, key, err))
				continue
			}
			if err := printMutation(cmd.OutOrStdout(), "marked "+string(status), mut); err != nil {
				return err
			}
		}

		return errors.Join(failed...)
	},
}

func init() {
	rootCmd.AddCommand(markCmd)
}
