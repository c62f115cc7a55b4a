package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/theirongolddev/restock/internal/cli"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	flagInvStatus   string
	flagInvCategory string
	flagInvSort     string

	flagAddCategory  string
	flagAddLocation  string
	flagAddQuantity  float64
	flagAddUnit      string
	flagAddStep      float64
	flagAddThreshold float64
	flagAddAuto      bool
)

var inventoryCmd = &cobra.Command{
	Use:     "inventory",
	Aliases: []string{"ls", "items"},
	Short:   "List tracked items with projected days remaining",
	Args:    cobra.NoArgs,
	RunE:    runInventory,
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Track a new item",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

var countCmd = &cobra.Command{
	Use:   "count <item> <quantity>",
	Short: "Record the quantity on hand after counting",
	Args:  cobra.ExactArgs(2),
	RunE:  runCount,
}

var useCmd = &cobra.Command{
	Use:   "use <item> [amount]",
	Short: "Record consumption (default 1 unit)",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runUse,
}

var removeCmd = &cobra.Command{
	Use:     "remove <item>",
	Aliases: []string{"rm"},
	Short:   "Stop tracking an item and drop its history",
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

var historyCmd = &cobra.Command{
	Use:   "history <item>",
	Short: "Show an item's recent quantity observations",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	inventoryCmd.Flags().StringVar(&flagInvStatus, "status", "", "Only show items with this status (good, low, critical)")
	inventoryCmd.Flags().StringVar(&flagInvCategory, "category", "", "Only show items in this category (substring match)")
	inventoryCmd.Flags().StringVar(&flagInvSort, "sort", "days", "Sort by: days, name, category")

	addCmd.Flags().StringVar(&flagAddCategory, "category", "", "Category (default from config)")
	addCmd.Flags().StringVar(&flagAddLocation, "location", "", "Storage location (default from config)")
	addCmd.Flags().Float64Var(&flagAddQuantity, "quantity", 0, "Quantity on hand")
	addCmd.Flags().StringVar(&flagAddUnit, "unit", "", "Unit of measure")
	addCmd.Flags().Float64Var(&flagAddStep, "step", 0, "Purchase granularity, e.g. 6 for eggs by the half dozen")
	addCmd.Flags().Float64Var(&flagAddThreshold, "threshold", 0, "Reorder threshold in days")
	addCmd.Flags().BoolVar(&flagAddAuto, "auto-reorder", false, "Enable auto-reorder")

	rootCmd.AddCommand(inventoryCmd, addCmd, countCmd, useCmd, removeCmd, historyCmd)
}

func runInventory(cmd *cobra.Command, _ []string) error {
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		views, err := eng.Items(ctx)
		if err != nil {
			return err
		}
		views = filterViews(views, flagInvStatus, flagInvCategory)
		sortViews(views, flagInvSort)

		if flagJSON {
			return printJSON(views)
		}
		if len(views) == 0 {
			fmt.Println("\n  No items tracked yet.")
			fmt.Println("  Add one with `restock add` or import a receipt with `restock receipt`.")
			return nil
		}

		now := time.Now()
		rows := make([][]string, 0, len(views))
		for _, v := range views {
			rows = append(rows, []string{
				v.Name,
				v.Category,
				cli.FormatQuantity(v.Quantity, v.Unit),
				cli.FormatRate(v.BurnRate, v.Unit),
				cli.FormatDays(v.DaysRemaining),
				cli.RenderStatus(v.Status),
				cli.FormatAge(v.LastUpdated, now),
			})
		}

		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   fmt.Sprintf("Inventory  %d items", len(views)),
			Headers: []string{"Item", "Category", "On hand", "Usage", "Left", "Status", "Updated"},
			Rows:    rows,
		}))
		return nil
	})
}

func filterViews(views []model.ItemView, status, category string) []model.ItemView {
	if status == "" && category == "" {
		return views
	}
	out := views[:0]
	for _, v := range views {
		if status != "" && !strings.EqualFold(string(v.Status), status) {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(v.Category), strings.ToLower(category)) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func sortViews(views []model.ItemView, by string) {
	sort.SliceStable(views, func(i, j int) bool {
		switch by {
		case "name":
			return strings.ToLower(views[i].Name) < strings.ToLower(views[j].Name)
		case "category":
			if views[i].Category != views[j].Category {
				return views[i].Category < views[j].Category
			}
			return strings.ToLower(views[i].Name) < strings.ToLower(views[j].Name)
		default:
			return views[i].Days() < views[j].Days()
		}
	})
}

func runAdd(cmd *cobra.Command, args []string) error {
	req := pipeline.NewItem{
		Name:        args[0],
		Category:    flagAddCategory,
		Location:    flagAddLocation,
		Quantity:    flagAddQuantity,
		Unit:        flagAddUnit,
		UnitStep:    flagAddStep,
		AutoReorder: flagAddAuto,
	}
	if cmd.Flags().Changed("threshold") {
		t := flagAddThreshold
		req.ReorderThreshold = &t
	}
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		v, err := eng.AddItem(ctx, req)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(v)
		}
		fmt.Printf("  Added %s (%s) with %s on hand\n", v.Name, cli.ShortID(v.ID), cli.FormatQuantity(v.Quantity, v.Unit))
		return nil
	})
}

func runCount(cmd *cobra.Command, args []string) error {
	q, err := parseAmount(args[1])
	if err != nil {
		return err
	}
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		it, err := eng.FindItem(ctx, args[0])
		if err != nil {
			return err
		}
		v, err := eng.RecordQuantity(ctx, it.ID, q)
		if err != nil {
			return err
		}
		return printItemChange(v)
	})
}

func runUse(cmd *cobra.Command, args []string) error {
	amount := 1.0
	if len(args) == 2 {
		a, err := parseAmount(args[1])
		if err != nil {
			return err
		}
		amount = a
	}
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		it, err := eng.FindItem(ctx, args[0])
		if err != nil {
			return err
		}
		v, err := eng.Consume(ctx, it.ID, amount)
		if err != nil {
			return err
		}
		return printItemChange(v)
	})
}

func runRemove(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		it, err := eng.FindItem(ctx, args[0])
		if err != nil {
			return err
		}
		if err := eng.DeleteItem(ctx, it.ID); err != nil {
			return err
		}
		fmt.Printf("  Removed %s\n", it.Name)
		return nil
	})
}

func runHistory(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		it, err := eng.FindItem(ctx, args[0])
		if err != nil {
			return err
		}
		h, err := eng.History(ctx, it.ID)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(h)
		}

		rows := make([][]string, 0, len(h))
		values := make([]float64, 0, len(h))
		for _, o := range h {
			rows = append(rows, []string{
				o.Timestamp.Local().Format("2006-01-02 15:04"),
				string(o.Kind),
				cli.FormatQuantity(o.QuantityAfter, it.Unit),
			})
			values = append(values, o.QuantityAfter)
		}

		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   fmt.Sprintf("%s  %s", it.Name, cli.FormatRate(it.BurnRate, it.Unit)),
			Headers: []string{"When", "Kind", "Quantity"},
			Rows:    rows,
		}))
		if len(values) > 1 {
			fmt.Printf("  %s\n", cli.RenderSparkline(values))
		}
		return nil
	})
}

func printItemChange(v model.ItemView) error {
	if flagJSON {
		return printJSON(v)
	}
	fmt.Printf("  %s: %s on hand, %s left at %s  %s\n",
		v.Name,
		cli.FormatQuantity(v.Quantity, v.Unit),
		cli.FormatDays(v.DaysRemaining),
		cli.FormatRate(v.BurnRate, v.Unit),
		cli.RenderStatus(v.Status),
	)
	return nil
}
