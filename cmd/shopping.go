package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/restock/internal/cli"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
	"github.com/theirongolddev/restock/internal/replenish"

	"github.com/spf13/cobra"
)

var (
	flagShopRefresh bool
	flagShopAll     bool
)

var shoppingCmd = &cobra.Command{
	Use:     "shopping",
	Aliases: []string{"list"},
	Short:   "Show the shopping list",
	Args:    cobra.NoArgs,
	RunE:    runShopping,
}

var buyCmd = &cobra.Command{
	Use:   "buy <entry-id|item>",
	Short: "Mark a shopping-list entry as purchased",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuy,
}

var reestimateCmd = &cobra.Command{
	Use:   "reestimate",
	Short: "Recompute every burn rate from stored history and re-plan the list",
	Args:  cobra.NoArgs,
	RunE:  runReestimate,
}

func init() {
	shoppingCmd.Flags().BoolVarP(&flagShopRefresh, "refresh", "r", false, "Re-plan the list before showing it")
	shoppingCmd.Flags().BoolVarP(&flagShopAll, "all", "a", false, "Include purchased entries")
	rootCmd.AddCommand(shoppingCmd, buyCmd, reestimateCmd)
}

func runShopping(cmd *cobra.Command, _ []string) error {
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		if flagShopRefresh {
			changes, err := eng.RefreshShoppingList(ctx)
			if err != nil {
				return err
			}
			if !flagJSON {
				printChanges(changes)
			}
		}

		entries, err := eng.ShoppingList(ctx, flagShopAll)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("\n  Nothing to buy.")
			return nil
		}

		now := time.Now()
		rows := make([][]string, 0, len(entries))
		for _, en := range entries {
			prio := cli.RenderPriority(en.Priority)
			if en.Purchased {
				prio = cli.RenderMuted("bought")
			}
			rows = append(rows, []string{
				cli.ShortID(en.ID),
				en.Name,
				cli.FormatQuantity(en.SuggestedQuantity, en.Unit),
				prio,
				cli.FormatAge(en.UpdatedAt, now),
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Shopping list",
			Headers: []string{"ID", "Item", "Buy", "Priority", "Updated"},
			Rows:    rows,
		}))
		return nil
	})
}

func printChanges(changes []replenish.Change) {
	if len(changes) == 0 {
		fmt.Println("  Shopping list is up to date.")
		return
	}
	var created, updated, removed int
	for _, c := range changes {
		switch c.Kind {
		case replenish.Created:
			created++
		case replenish.Updated:
			updated++
		case replenish.Removed:
			removed++
		}
	}
	fmt.Printf("  Shopping list: %d added, %d updated, %d removed\n", created, updated, removed)
}

func runBuy(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		entries, err := eng.ShoppingList(ctx, false)
		if err != nil {
			return err
		}
		en, err := findEntry(entries, args[0])
		if err != nil {
			return err
		}
		bought, err := eng.MarkPurchased(ctx, en.ID)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(bought)
		}
		fmt.Printf("  Bought %s of %s\n", cli.FormatQuantity(bought.SuggestedQuantity, bought.Unit), bought.Name)
		fmt.Println(cli.RenderMuted("  Update the count with `restock count` once it is put away."))
		return nil
	})
}

// findEntry resolves an entry id prefix or an item name among open entries.
func findEntry(entries []model.ShoppingListItem, ref string) (model.ShoppingListItem, error) {
	var found []model.ShoppingListItem
	for _, en := range entries {
		if en.ID == ref {
			return en, nil
		}
		if strings.HasPrefix(en.ID, ref) || strings.EqualFold(en.Name, strings.TrimSpace(ref)) {
			found = append(found, en)
		}
	}
	switch len(found) {
	case 0:
		return model.ShoppingListItem{}, fmt.Errorf("shopping entry %q: %w", ref, pipeline.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return model.ShoppingListItem{}, fmt.Errorf("%q matches %d shopping entries", ref, len(found))
	}
}

func runReestimate(cmd *cobra.Command, _ []string) error {
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		start := time.Now()
		res, err := eng.Reestimate(ctx, func(current, total int) {
			if current%25 == 0 || current == total {
				progressf("\r  Re-estimating [%d/%d]", current, total)
			}
		})
		progressf("\n")
		if res != nil {
			if flagJSON {
				if jerr := printJSON(res); jerr != nil {
					return jerr
				}
			} else {
				fmt.Printf("  %d items, %d rates changed, %d failed (%s)\n",
					res.Items, res.Changed, res.Errors, time.Since(start).Round(time.Millisecond))
			}
		}
		return err
	})
}
