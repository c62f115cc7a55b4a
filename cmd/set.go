package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/theirongolddev/restock/internal/pipeline"

	"github.com/spf13/cobra"
)

var setCmd = &cobra.Command{
	Use:   "set <item>",
	Short: "Change an item's settings",
	Long:  "Change name, category, location, unit, purchase step, reorder threshold or auto-reorder. Only the flags given are changed.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSet,
}

func init() {
	f := setCmd.Flags()
	f.String("name", "", "Rename the item")
	f.String("category", "", "Category")
	f.String("location", "", "Storage location")
	f.String("unit", "", "Unit of measure")
	f.Float64("step", 0, "Purchase granularity")
	f.Float64("threshold", 0, "Reorder threshold in days")
	f.Bool("clear-threshold", false, "Use the configured default threshold again")
	f.Bool("auto-reorder", false, "Enable or disable auto-reorder")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	s, err := settingsFromFlags(cmd)
	if err != nil {
		return err
	}
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		it, err := eng.FindItem(ctx, args[0])
		if err != nil {
			return err
		}
		v, err := eng.UpdateItemSettings(ctx, it.ID, s)
		if err != nil {
			return err
		}
		return printItemChange(v)
	})
}

// settingsFromFlags sets only the fields whose flags were given.
func settingsFromFlags(cmd *cobra.Command) (pipeline.ItemSettings, error) {
	var s pipeline.ItemSettings
	f := cmd.Flags()

	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}
	num := func(name string) *float64 {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetFloat64(name)
		return &v
	}

	s.Name = str("name")
	s.Category = str("category")
	s.Location = str("location")
	s.Unit = str("unit")
	s.UnitStep = num("step")
	s.ReorderThreshold = num("threshold")
	s.ClearReorderThreshold, _ = f.GetBool("clear-threshold")
	if f.Changed("auto-reorder") {
		v, _ := f.GetBool("auto-reorder")
		s.AutoReorder = &v
	}

	if s == (pipeline.ItemSettings{}) {
		return s, fmt.Errorf("nothing to change; see `restock set --help`")
	}
	return s, nil
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
