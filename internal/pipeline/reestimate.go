package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/store"
)

// ProgressFunc is called as items are processed.
// current is the number of items done so far, total is the item count.
type ProgressFunc func(current, total int)

// ReestimateResult counts the outcome of a full burn-rate pass.
type ReestimateResult struct {
	Items   int
	Changed int
	Errors  int
}

// Reestimate recomputes every item's burn rate from its stored history with
// a bounded worker pool, then re-plans the whole shopping list. It is used
// after the estimator settings change.
func (e *Engine) Reestimate(ctx context.Context, progressFn ProgressFunc) (*ReestimateResult, error) {
	items, err := e.store.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	result := &ReestimateResult{Items: len(items)}
	if len(items) == 0 {
		return result, nil
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers < 1 {
		numWorkers = 4
	}
	if numWorkers > len(items) {
		numWorkers = len(items)
	}

	work := make(chan int, len(items))
	changed := make([]bool, len(items))
	errs := make([]error, len(items))
	var wg sync.WaitGroup
	var processed atomic.Int64

	for i := range items {
		work <- i
	}
	close(work)

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				changed[idx], errs[idx] = e.reestimateItem(ctx, items[idx].ID)
				n := processed.Add(1)
				if progressFn != nil {
					progressFn(int(n), len(items))
				}
			}
		}()
	}

	wg.Wait()

	var changedItems []model.ItemView
	for i, err := range errs {
		if err != nil {
			result.Errors++
			continue
		}
		if changed[i] {
			result.Changed++
			if v, err := e.Item(ctx, items[i].ID); err == nil {
				changedItems = append(changedItems, v)
			}
		}
	}
	if result.Changed > 0 {
		e.emit(ctx, Event{Kind: EventRatesReestimated, Items: changedItems})
	}

	if _, err := e.plan(ctx, nil); err != nil {
		return result, err
	}
	if result.Errors > 0 {
		return result, fmt.Errorf("reestimating: %d of %d items failed", result.Errors, result.Items)
	}
	return result, nil
}

func (e *Engine) reestimateItem(ctx context.Context, id string) (bool, error) {
	unlock := e.itemLocks.Lock(id)
	defer unlock()

	changed := false
	err := e.retry(ctx, "reestimate", func() error {
		it, err := e.store.Item(ctx, id)
		if err != nil {
			return err
		}
		h, err := e.history(ctx, id)
		if err != nil {
			return err
		}
		rate := e.estimator.Estimate(h)
		if rate == it.BurnRate {
			changed = false
			return nil
		}
		it.BurnRate = rate
		changed = true
		return e.store.Apply(ctx, store.Batch{Update: []model.InventoryItem{it}})
	})
	return changed, err
}
