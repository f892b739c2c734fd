package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmgilman/dexkeep/internal/instance"
)

var editCmd = &cobra.Command{
	Use:   "edit <instance-id>",
	Short: "Edit the details of one instance",
	Long: `Edit the per-copy details of an instance. Only the flags given are
changed; everything else is kept.`,
	Example: `  # Name a copy and record its IVs
  dexkeep edit 0025-default_<uuid> --nickname Sparky --attack 15 --defense 14 --stamina 15`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInstanceID(args[0])
		if err != nil {
			return err
		}

		mgr, err := requireManager(cmd.Context())
		if err != nil {
			return err
		}

		inst, ok := mgr.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", instance.ErrInstanceNotFound, id)
		}

		details, err := applyDetailFlags(cmd.Flags(), inst.Details)
		if err != nil {
			return err
		}

		mut, err := mgr.UpdateDetails(cmd.Context(), id, details)
		if err != nil {
			return fmt.Errorf("edit %s: %w", id, err)
		}
		return printMutation(cmd.OutOrStdout(), "edited", mut)
	},
}

// applyDetailFlags copies every changed detail flag onto d.
func applyDetailFlags(flags *pflag.FlagSet, d instance.Details) (instance.Details, error) {
	var err error
	str := func(name string, dst *string) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetInt(name)
		}
	}
	iv := func(name string, dst **int) {
		if err == nil && flags.Changed(name) {
			var v int
			if v, err = flags.GetInt(name); err == nil {
				*dst = &v
			}
		}
	}
	float := func(name string, dst *float64) {
		if err == nil && flags.Changed(name) {
			*dst, err = flags.GetFloat64(name)
		}
	}

	str("nickname", &d.Nickname)
	num("cp", &d.CP)
	iv("attack", &d.AttackIV)
	iv("defense", &d.DefenseIV)
	iv("stamina", &d.StaminaIV)
	str("gender", &d.Gender)
	float("weight", &d.Weight)
	float("height", &d.Height)
	str("location", &d.Location)
	str("date", &d.DateCaught)
	if err == nil && flags.Changed("favorite") {
		d.Favorite, err = flags.GetBool("favorite")
	}
	if err != nil {
		return d, fmt.Errorf("read detail flags: %w", err)
	}
	return d, nil
}

// addDetailFlags registers the flags read by applyDetailFlags.
func addDetailFlags(fs *pflag.FlagSet) {
	fs.String("nickname", "", "nickname (up to 12 characters)")
	fs.Int("cp", 0, "combat power")
	fs.Int("attack", 0, "attack IV (0-15)")
	fs.Int("defense", 0, "defense IV (0-15)")
	fs.Int("stamina", 0, "stamina IV (0-15)")
	fs.String("gender", "", "male, female or genderless")
	fs.Float64("weight", 0, "weight in kg")
	fs.Float64("height", 0, "height in m")
	fs.String("location", "", "where it was caught")
	fs.String("date", "", "date caught (YYYY-MM-DD)")
	fs.Bool("favorite", false, "mark as favorite")
}

func init() {
	rootCmd.AddCommand(editCmd)

	addDetailFlags(editCmd.Flags())
}
