package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/theirongolddev/restock/internal/cli"
	"github.com/theirongolddev/restock/internal/ingest"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	flagReceiptSource  string
	flagReceiptWorkers int
	flagReceiptsLimit  int
)

var receiptCmd = &cobra.Command{
	Use:   "receipt <file|dir>...",
	Short: "Import parsed receipt files (YAML or JSON) and reconcile them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReceipt,
}

var receiptsCmd = &cobra.Command{
	Use:   "receipts",
	Short: "List stored receipts, newest first",
	Args:  cobra.NoArgs,
	RunE:  runReceipts,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <receipt-id>",
	Short: "Retry reconciliation of a stored receipt",
	Args:  cobra.ExactArgs(1),
	RunE:  runReconcile,
}

func init() {
	receiptCmd.Flags().StringVar(&flagReceiptSource, "source", string(model.SourcePhoto), "Source for files that don't name one (email or photo)")
	receiptCmd.Flags().IntVar(&flagReceiptWorkers, "workers", 0, "Parallel imports (default GOMAXPROCS)")
	receiptsCmd.Flags().IntVarP(&flagReceiptsLimit, "limit", "l", 20, "Number of receipts to show (0 for all)")
	rootCmd.AddCommand(receiptCmd, receiptsCmd, reconcileCmd)
}

// collectReceiptFiles expands directories and keeps explicit files as given.
func collectReceiptFiles(args []string) ([]ingest.DiscoveredFile, error) {
	var files []ingest.DiscoveredFile
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, err := ingest.ScanDir(arg)
			if err != nil {
				return nil, fmt.Errorf("scanning %s: %w", arg, err)
			}
			files = append(files, found...)
			continue
		}
		base := filepath.Base(arg)
		files = append(files, ingest.DiscoveredFile{
			Path: arg,
			Name: strings.TrimSuffix(base, filepath.Ext(base)),
		})
	}
	return files, nil
}

func runReceipt(cmd *cobra.Command, args []string) error {
	files, err := collectReceiptFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Println("\n  No receipt files found (.yaml, .yml or .json).")
		return nil
	}

	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		start := time.Now()
		progressFn := func(current, total int) {
			progressf("\r  Importing %s [%d/%d]", cli.RenderProgressBar(current, total, 24), current, total)
		}
		results := ingest.Import(ctx, eng, files, model.ReceiptSource(flagReceiptSource), flagReceiptWorkers, progressFn)
		progressf("\n")

		if flagJSON {
			return printJSON(importJSON(results))
		}

		var matched, created, failed int
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			if r.Err != nil {
				failed++
				rows = append(rows, []string{r.File.Name, "-", "-", cli.RenderWarning(shortError(r.Err))})
				continue
			}
			matched += len(r.Report.Matched)
			created += len(r.Report.Created)
			rows = append(rows, []string{
				r.File.Name,
				fmt.Sprintf("%d", len(r.Report.Matched)),
				fmt.Sprintf("%d", len(r.Report.Created)),
				cli.ShortID(r.Report.Receipt.ID),
			})
		}

		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   fmt.Sprintf("Imported %d of %d receipts in %s", len(results)-failed, len(results), time.Since(start).Round(time.Millisecond)),
			Headers: []string{"File", "Matched", "New", "Receipt"},
			Rows:    rows,
		}))
		fmt.Printf("  %d lines restocked existing items, %d new items tracked\n", matched, created)
		if failed > 0 {
			return fmt.Errorf("%d receipt files failed", failed)
		}
		return nil
	})
}

type importedFile struct {
	File   string                    `json:"file"`
	Report *pipeline.ReconcileReport `json:"report,omitempty"`
	Error  string                    `json:"error,omitempty"`
}

func importJSON(results []ingest.ImportResult) []importedFile {
	out := make([]importedFile, 0, len(results))
	for _, r := range results {
		f := importedFile{File: r.File.Path}
		if r.Err != nil {
			f.Error = r.Err.Error()
		} else {
			rep := r.Report
			f.Report = &rep
		}
		out = append(out, f)
	}
	return out
}

func shortError(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrReceiptAlreadyProcessed):
		return "already processed"
	default:
		return err.Error()
	}
}

func runReceipts(cmd *cobra.Command, _ []string) error {
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		receipts, err := eng.Receipts(ctx, flagReceiptsLimit)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(receipts)
		}
		if len(receipts) == 0 {
			fmt.Println("\n  No receipts yet.")
			return nil
		}

		now := time.Now()
		rows := make([][]string, 0, len(receipts))
		for _, r := range receipts {
			state := "processed"
			if !r.Processed {
				state = cli.RenderWarning("pending")
			}
			rows = append(rows, []string{
				cli.ShortID(r.ID),
				string(r.Source),
				fmt.Sprintf("%d", len(r.Items)),
				cli.FormatMoney(r.Total()),
				state,
				cli.FormatAge(r.CreatedAt, now),
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Receipts",
			Headers: []string{"ID", "Source", "Lines", "Total", "State", "Received"},
			Rows:    rows,
		}))
		return nil
	})
}

func runReconcile(cmd *cobra.Command, args []string) error {
	return withEngine(cmd, func(ctx context.Context, eng *pipeline.Engine) error {
		id, err := resolveReceiptID(ctx, eng, args[0])
		if err != nil {
			return err
		}
		rep, err := eng.ReconcileReceipt(ctx, id)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(rep)
		}
		fmt.Printf("  Reconciled %s: %d matched, %d new, %d shopping changes\n",
			cli.ShortID(rep.Receipt.ID), len(rep.Matched), len(rep.Created), len(rep.Shopping))
		return nil
	})
}

// resolveReceiptID accepts a full id or a unique prefix as printed by `receipts`.
func resolveReceiptID(ctx context.Context, eng *pipeline.Engine, ref string) (string, error) {
	if _, err := eng.Receipt(ctx, ref); err == nil {
		return ref, nil
	}
	receipts, err := eng.Receipts(ctx, 0)
	if err != nil {
		return "", err
	}
	var found []string
	for _, r := range receipts {
		if strings.HasPrefix(r.ID, ref) {
			found = append(found, r.ID)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("receipt %q: %w", ref, pipeline.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("receipt prefix %q matches %d receipts", ref, len(found))
	}
}
