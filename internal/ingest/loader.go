package ingest

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
)

// Submitter accepts parsed receipts. *pipeline.Engine satisfies it.
type Submitter interface {
	SubmitReceipt(ctx context.Context, sub pipeline.ReceiptSubmission) (pipeline.ReconcileReport, error)
}

// ProgressFunc is called as files are processed.
// current is the number of files done so far, total is the file count.
type ProgressFunc func(current, total int)

// ImportResult is the outcome for one file.
type ImportResult struct {
	File   DiscoveredFile
	Report pipeline.ReconcileReport
	Err    error
}

// Import parses and submits files with a bounded worker pool. Results keep
// the order of files; a failing file does not stop the others.
func Import(ctx context.Context, sub Submitter, files []DiscoveredFile, defaultSource model.ReceiptSource, numWorkers int, progressFn ProgressFunc) []ImportResult {
	results := make([]ImportResult, len(files))
	if len(files) == 0 {
		return results
	}

	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	work := make(chan int, len(files))
	for i := range files {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	var processed atomic.Int64

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				results[idx] = importOne(ctx, sub, files[idx], defaultSource)
				n := processed.Add(1)
				if progressFn != nil {
					progressFn(int(n), len(files))
				}
			}
		}()
	}

	wg.Wait()
	return results
}

func importOne(ctx context.Context, sub Submitter, df DiscoveredFile, defaultSource model.ReceiptSource) ImportResult {
	if err := ctx.Err(); err != nil {
		return ImportResult{File: df, Err: err}
	}
	pr := ParseFile(df, defaultSource)
	if pr.Err != nil {
		return ImportResult{File: df, Err: pr.Err}
	}
	report, err := sub.SubmitReceipt(ctx, pr.Submission)
	return ImportResult{File: df, Report: report, Err: err}
}
