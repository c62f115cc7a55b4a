package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/theirongolddev/restock/internal/cli"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Household report with insights and recommendations",
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		sum, err := eng.Summary(ctx)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(sum)
		}
		printSummary(sum)
		return nil
	})
}

func printSummary(sum model.Summary) {
	fmt.Println()
	fmt.Println(cli.RenderTitle("RESTOCK  Household summary"))
	fmt.Println()

	rows := [][]string{
		{"Items tracked", cli.FormatNumber(int64(sum.TotalItems))},
		{"Good", cli.FormatNumber(int64(sum.GoodItems))},
		{"Low", cli.FormatNumber(int64(sum.LowItems))},
		{"Critical", cli.FormatNumber(int64(sum.CriticalItems))},
		cli.SeparatorRow,
		{"No usage estimate", cli.FormatNumber(int64(sum.UnknownRateItems))},
		{"Shopping entries", cli.FormatNumber(int64(sum.ActiveShoppingEntries))},
		{"Spend (30d)", cli.FormatMoney(sum.RecentSpend)},
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Metric", "Value"},
		Rows:    rows,
	}))

	if sum.TotalItems > 0 {
		fmt.Println()
		total := float64(sum.TotalItems)
		fmt.Println(cli.RenderHorizontalBar("Good", float64(sum.GoodItems), total, 30, cli.StatusStyle(model.StatusGood)))
		fmt.Println(cli.RenderHorizontalBar("Low", float64(sum.LowItems), total, 30, cli.StatusStyle(model.StatusLow)))
		fmt.Println(cli.RenderHorizontalBar("Critical", float64(sum.CriticalItems), total, 30, cli.StatusStyle(model.StatusCritical)))
	}

	if len(sum.Insights) > 0 {
		fmt.Println()
		fmt.Println("  Insights")
		for _, s := range sum.Insights {
			fmt.Printf("    %s\n", s)
		}
	}
	if len(sum.Recommendations) > 0 {
		fmt.Println()
		fmt.Println("  Recommendations")
		for _, s := range sum.Recommendations {
			fmt.Printf("    %s\n", cli.RenderWarning(s))
		}
	}
	fmt.Println()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
