package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/replenish"
	"github.com/theirongolddev/restock/internal/store"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

const day = 24 * time.Hour

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%03d", n.Add(1)) }
}

func newTestEngine(t *testing.T, s store.Store, opts ...Option) (*Engine, *testClock) {
	t.Helper()
	clk := &testClock{t: time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clk.Now), WithIDs(sequentialIDs())}, opts...)
	return New(s, config.DefaultEngine(), opts...), clk
}

func mustAdd(t *testing.T, e *Engine, req NewItem) model.ItemView {
	t.Helper()
	v, err := e.AddItem(context.Background(), req)
	if err != nil {
		t.Fatalf("AddItem(%s): %v", req.Name, err)
	}
	return v
}

func activeEntries(t *testing.T, e *Engine) []model.ShoppingListItem {
	t.Helper()
	list, err := e.ShoppingList(context.Background(), false)
	if err != nil {
		t.Fatalf("ShoppingList: %v", err)
	}
	return list
}

func TestSubmitReceipt_MatchesAndCreates(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemory())
	dairy := mustAdd(t, e, NewItem{Name: "Milk", Category: "Dairy", Quantity: 1, Unit: "l"})
	oat := mustAdd(t, e, NewItem{Name: "Milk", Category: "Non-Dairy", Quantity: 1, Unit: "l"})

	price := decimal.RequireFromString("1.29")
	rep, err := e.SubmitReceipt(ctx, ReceiptSubmission{
		Source: model.SourcePhoto,
		Items: []ReceiptLine{
			{Name: "Milk", Category: "Dairy", Quantity: 2, Price: &price},
			{Name: "Sourdough", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("SubmitReceipt: %v", err)
	}
	if len(rep.Matched) != 1 || rep.Matched[0].ID != dairy.ID {
		t.Fatalf("Matched = %+v, want the Dairy milk", rep.Matched)
	}
	if rep.Matched[0].Quantity != 3 {
		t.Fatalf("Dairy milk quantity = %v, want 3", rep.Matched[0].Quantity)
	}
	if len(rep.Created) != 1 || rep.Created[0].Category != "Uncategorized" || rep.Created[0].Location != "Pantry" {
		t.Fatalf("Created = %+v, want one Uncategorized item in the Pantry", rep.Created)
	}
	if !rep.Receipt.Processed || rep.Receipt.Items[0].MatchedInventoryID != dairy.ID {
		t.Fatalf("receipt = %+v", rep.Receipt)
	}

	if v, _ := e.Item(ctx, oat.ID); v.Quantity != 1 {
		t.Fatalf("Non-Dairy milk quantity = %v, want 1", v.Quantity)
	}
	stored, err := e.Receipt(ctx, rep.Receipt.ID)
	if err != nil || !stored.Processed {
		t.Fatalf("stored receipt = %+v, %v", stored, err)
	}
}

func TestReconcileReceipt_Twice(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemory())
	rice := mustAdd(t, e, NewItem{Name: "Rice", Category: "Grains", Quantity: 1, Unit: "kg"})

	rep, err := e.SubmitReceipt(ctx, ReceiptSubmission{Source: model.SourceEmail, Items: []ReceiptLine{{Name: "Rice", Quantity: 2}}})
	if err != nil {
		t.Fatalf("SubmitReceipt: %v", err)
	}

	_, err = e.ReconcileReceipt(ctx, rep.Receipt.ID)
	if !errors.Is(err, ErrReceiptAlreadyProcessed) {
		t.Fatalf("second reconcile err = %v, want ErrReceiptAlreadyProcessed", err)
	}
	if v, _ := e.Item(ctx, rice.ID); v.Quantity != 3 {
		t.Fatalf("quantity = %v, want 3 after one reconciliation", v.Quantity)
	}
	if h, _ := e.History(ctx, rice.ID); len(h) != 2 {
		t.Fatalf("history = %d observations, want 2", len(h))
	}
}

func TestReconcileReceipt_Unknown(t *testing.T) {
	e, _ := newTestEngine(t, store.NewMemory())
	if _, err := e.ReconcileReceipt(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSubmitReceipt_Validation(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemory())
	neg := decimal.RequireFromString("-1")

	cases := []ReceiptSubmission{
		{Source: model.SourcePhoto, Items: []ReceiptLine{{Name: "Rice", Quantity: -2}}},
		{Source: model.SourcePhoto, Items: []ReceiptLine{{Name: "", Quantity: 1}}},
		{Source: "fax", Items: []ReceiptLine{{Name: "Rice", Quantity: 1}}},
		{Source: model.SourcePhoto},
		{Source: model.SourcePhoto, Items: []ReceiptLine{{Name: "Rice", Quantity: 1, Price: &neg}}},
	}
	for i, sub := range cases {
		_, err := e.SubmitReceipt(ctx, sub)
		var verr *ValidationError
		if !errors.Is(err, ErrValidation) || !errors.As(err, &verr) {
			t.Fatalf("case %d: err = %v, want a validation error", i, err)
		}
	}
	if list, _ := e.Receipts(ctx, 0); len(list) != 0 {
		t.Fatalf("receipts = %d, want none stored for rejected input", len(list))
	}
}

func TestRecordQuantity_EstimatesAndPlans(t *testing.T) {
	ctx := context.Background()
	e, clk := newTestEngine(t, store.NewMemory())
	eggs := mustAdd(t, e, NewItem{Name: "Eggs", Quantity: 10})

	clk.Advance(day)
	if _, err := e.RecordQuantity(ctx, eggs.ID, 8); err != nil {
		t.Fatalf("RecordQuantity: %v", err)
	}
	clk.Advance(day)
	v, err := e.RecordQuantity(ctx, eggs.ID, 6)
	if err != nil {
		t.Fatalf("RecordQuantity: %v", err)
	}
	if !v.BurnRate.Known || v.BurnRate.Value != 2 {
		t.Fatalf("BurnRate = %+v, want 2/day", v.BurnRate)
	}
	if v.Status != model.StatusLow || v.Days() != 3 {
		t.Fatalf("status = %s days = %v, want low at 3", v.Status, v.Days())
	}

	list := activeEntries(t, e)
	if len(list) != 1 || list[0].Priority != model.PriorityHigh {
		t.Fatalf("shopping list = %+v, want one high-priority entry", list)
	}
	if list[0].SuggestedQuantity != 22 { // 2*14 - 6
		t.Fatalf("SuggestedQuantity = %v, want 22", list[0].SuggestedQuantity)
	}
	entryID := list[0].ID

	clk.Advance(day)
	if _, err := e.RecordQuantity(ctx, eggs.ID, 2); err != nil {
		t.Fatalf("RecordQuantity: %v", err)
	}
	list = activeEntries(t, e)
	if len(list) != 1 || list[0].ID != entryID || list[0].Priority != model.PriorityCritical {
		t.Fatalf("shopping list = %+v, want entry %s updated to critical", list, entryID)
	}
}

func TestRecordQuantity_Errors(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemory())
	it := mustAdd(t, e, NewItem{Name: "Salt", Quantity: 1})

	if _, err := e.RecordQuantity(ctx, it.ID, -1); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative quantity err = %v, want ErrValidation", err)
	}
	if _, err := e.RecordQuantity(ctx, "missing", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing item err = %v, want ErrNotFound", err)
	}
	if _, err := e.Consume(ctx, it.ID, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero consume err = %v, want ErrValidation", err)
	}
}

func TestRestockCancelsNeed(t *testing.T) {
	ctx := context.Background()
	e, clk := newTestEngine(t, store.NewMemory())
	milk := mustAdd(t, e, NewItem{Name: "Milk", Category: "Dairy", Quantity: 4})
	clk.Advance(day)
	if _, err := e.RecordQuantity(ctx, milk.ID, 3); err != nil {
		t.Fatalf("RecordQuantity: %v", err)
	}
	clk.Advance(day)
	if _, err := e.RecordQuantity(ctx, milk.ID, 2); err != nil {
		t.Fatalf("RecordQuantity: %v", err)
	}
	if list := activeEntries(t, e); len(list) != 1 || list[0].Priority != model.PriorityCritical {
		t.Fatalf("shopping list = %+v, want one critical entry", list)
	}

	clk.Advance(time.Hour)
	rep, err := e.SubmitReceipt(ctx, ReceiptSubmission{Source: model.SourceEmail, Items: []ReceiptLine{{Name: "milk", Category: "dairy", Quantity: 6}}})
	if err != nil {
		t.Fatalf("SubmitReceipt: %v", err)
	}
	if len(rep.Matched) != 1 || rep.Matched[0].Status != model.StatusGood {
		t.Fatalf("matched = %+v, want milk back to good", rep.Matched)
	}
	if len(rep.Shopping) != 1 || rep.Shopping[0].Kind != replenish.Removed {
		t.Fatalf("shopping changes = %+v, want the entry removed", rep.Shopping)
	}
	if list := activeEntries(t, e); len(list) != 0 {
		t.Fatalf("shopping list = %+v, want empty", list)
	}
}

func TestRefreshShoppingList_Idempotent(t *testing.T) {
	ctx := context.Background()
	e, clk := newTestEngine(t, store.NewMemory())
	for i, name := range []string{"Coffee", "Tea", "Sugar"} {
		it := mustAdd(t, e, NewItem{Name: name, Quantity: 10})
		clk.Advance(day)
		if _, err := e.RecordQuantity(ctx, it.ID, float64(8-i*2)); err != nil {
			t.Fatalf("RecordQuantity: %v", err)
		}
	}

	first := activeEntries(t, e)
	if len(first) == 0 {
		t.Fatal("expected entries after consumption")
	}
	changes, err := e.RefreshShoppingList(ctx)
	if err != nil {
		t.Fatalf("RefreshShoppingList: %v", err)
	}
	if len(changes) != 0 {
		t.Fatalf("refresh changes = %+v, want none", changes)
	}
	clk.Advance(time.Hour)
	if changes, _ = e.RefreshShoppingList(ctx); len(changes) != 0 {
		t.Fatalf("second refresh changes = %+v, want none", changes)
	}
	second := activeEntries(t, e)
	if len(second) != len(first) {
		t.Fatalf("list length %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("entry %d changed: %+v -> %+v", i, first[i], second[i])
		}
	}
}

func TestUnknownRateItem(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemory())
	v := mustAdd(t, e, NewItem{Name: "Saffron", Quantity: 3})
	if v.BurnRate.Known || v.DaysRemaining != nil || v.Status != model.StatusGood {
		t.Fatalf("view = %+v, want unknown rate, infinite days, good", v)
	}
	it, _ := e.store.Item(ctx, v.ID)
	if got := e.planner.SuggestQuantity(it); got != 3 {
		t.Fatalf("SuggestQuantity = %v, want last known quantity 3", got)
	}
}

func TestDeleteItem_RemovesEntriesAndHistory(t *testing.T) {
	ctx := context.Background()
	e, clk := newTestEngine(t, store.NewMemory())
	it := mustAdd(t, e, NewItem{Name: "Butter", Quantity: 3})
	clk.Advance(day)
	if _, err := e.RecordQuantity(ctx, it.ID, 1); err != nil {
		t.Fatalf("RecordQuantity: %v", err)
	}
	if len(activeEntries(t, e)) != 1 {
		t.Fatal("expected a shopping entry before delete")
	}

	if err := e.DeleteItem(ctx, it.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if list, _ := e.ShoppingList(ctx, true); len(list) != 0 {
		t.Fatalf("shopping list = %+v, want no orphans", list)
	}
	if _, err := e.History(ctx, it.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("History err = %v, want ErrNotFound", err)
	}
	if err := e.DeleteItem(ctx, it.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestMarkPurchased_SuppressesUntilNextUpdate(t *testing.T) {
	ctx := context.Background()
	e, clk := newTestEngine(t, store.NewMemory())
	it := mustAdd(t, e, NewItem{Name: "Flour", Quantity: 5})
	clk.Advance(day)
	if _, err := e.RecordQuantity(ctx, it.ID, 1); err != nil {
		t.Fatalf("RecordQuantity: %v", err)
	}
	list := activeEntries(t, e)
	if len(list) != 1 {
		t.Fatalf("list = %+v, want one entry", list)
	}

	clk.Advance(time.Hour)
	if _, err := e.MarkPurchased(ctx, list[0].ID); err != nil {
		t.Fatalf("MarkPurchased: %v", err)
	}
	clk.Advance(time.Hour)
	if changes, _ := e.RefreshShoppingList(ctx); len(changes) != 0 {
		t.Fatalf("refresh changes = %+v, want none while purchase is pending", changes)
	}

	clk.Advance(time.Hour)
	if _, err := e.RecordQuantity(ctx, it.ID, 0.5); err != nil {
		t.Fatalf("RecordQuantity: %v", err)
	}
	if got := activeEntries(t, e); len(got) != 1 || got[0].ID == list[0].ID {
		t.Fatalf("list = %+v, want a fresh entry after the next update", got)
	}

	if _, err := e.MarkPurchased(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkPurchased(missing) err = %v, want ErrNotFound", err)
	}
}

func TestUpdateItemSettings_ReplansWithThreshold(t *testing.T) {
	ctx := context.Background()
	e, clk := newTestEngine(t, store.NewMemory())
	it := mustAdd(t, e, NewItem{Name: "Rice", Quantity: 100})
	clk.Advance(day)
	v, err := e.RecordQuantity(ctx, it.ID, 90)
	if err != nil {
		t.Fatalf("RecordQuantity: %v", err)
	}
	if v.Status != model.StatusGood || v.Days() != 9 {
		t.Fatalf("status = %s days = %v, want good at 9", v.Status, v.Days())
	}

	threshold := 30.0
	v, err = e.UpdateItemSettings(ctx, it.ID, ItemSettings{ReorderThreshold: &threshold})
	if err != nil {
		t.Fatalf("UpdateItemSettings: %v", err)
	}
	if v.Status != model.StatusLow {
		t.Fatalf("status = %s with a 30-day threshold, want low", v.Status)
	}
	list := activeEntries(t, e)
	if len(list) != 1 || list[0].Priority != model.PriorityMedium {
		t.Fatalf("list = %+v, want one medium entry", list)
	}
	if h, _ := e.History(ctx, it.ID); len(h) != 2 {
		t.Fatalf("history = %d observations, want settings to add none", len(h))
	}

	bad := -1.0
	if _, err := e.UpdateItemSettings(ctx, it.ID, ItemSettings{UnitStep: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestListenerReceivesEvents(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var kinds []EventKind
	l := ListenerFunc(func(_ context.Context, ev Event) error {
		mu.Lock()
		kinds = append(kinds, ev.Kind)
		mu.Unlock()
		return errors.New("listener failures are logged only")
	})
	e, _ := newTestEngine(t, store.NewMemory(), WithListener(l))
	if _, err := e.SubmitReceipt(ctx, ReceiptSubmission{Source: model.SourcePhoto, Items: []ReceiptLine{{Name: "Oats", Quantity: 1}}}); err != nil {
		t.Fatalf("SubmitReceipt: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) == 0 || kinds[0] != EventReceiptReconciled {
		t.Fatalf("events = %v, want receipt_reconciled first", kinds)
	}
}

func TestFindItem(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t, store.NewMemory())
	a := mustAdd(t, e, NewItem{Name: "Pasta", Quantity: 1})
	mustAdd(t, e, NewItem{Name: "Milk", Category: "Dairy", Quantity: 1})
	mustAdd(t, e, NewItem{Name: "Milk", Category: "Non-Dairy", Quantity: 1})

	if v, err := e.FindItem(ctx, "pasta"); err != nil || v.ID != a.ID {
		t.Fatalf("FindItem(pasta) = %+v, %v", v, err)
	}
	if v, err := e.FindItem(ctx, a.ID); err != nil || v.ID != a.ID {
		t.Fatalf("FindItem(id) = %+v, %v", v, err)
	}
	if _, err := e.FindItem(ctx, "milk"); !errors.Is(err, ErrValidation) {
		t.Fatalf("FindItem(milk) err = %v, want ambiguity", err)
	}
	if _, err := e.FindItem(ctx, "caviar"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindItem(caviar) err = %v, want ErrNotFound", err)
	}
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	e, clk := newTestEngine(t, store.NewMemory())
	a := mustAdd(t, e, NewItem{Name: "Apples", Quantity: 10})
	mustAdd(t, e, NewItem{Name: "Basil", Quantity: 1})
	clk.Advance(day)
	if _, err := e.RecordQuantity(ctx, a.ID, 2); err != nil {
		t.Fatalf("RecordQuantity: %v", err)
	}

	s, err := e.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.TotalItems != 2 || s.CriticalItems != 1 || s.GoodItems != 1 || s.UnknownRateItems != 1 {
		t.Fatalf("summary counts = %+v", s)
	}
	if s.ActiveShoppingEntries != 1 {
		t.Fatalf("ActiveShoppingEntries = %d, want 1", s.ActiveShoppingEntries)
	}
}

func TestSummary_SpendCoversWholeWindow(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	e, clk := newTestEngine(t, mem)
	mustAdd(t, e, NewItem{Name: "Apples", Quantity: 10})

	price := decimal.RequireFromString("1.25")
	for i := 0; i < 150; i++ {
		r := model.Receipt{
			ID:        fmt.Sprintf("r-%03d", i),
			Source:    model.SourcePhoto,
			CreatedAt: clk.Now().Add(-time.Duration(i) * time.Hour),
			Items:     []model.ReceiptItem{{Name: "Apples", Quantity: 1, Price: &price}},
		}
		if err := mem.SaveReceipt(ctx, r); err != nil {
			t.Fatalf("SaveReceipt: %v", err)
		}
	}
	old := model.Receipt{ID: "r-old", Source: model.SourcePhoto, CreatedAt: clk.Now().Add(-40 * day),
		Items: []model.ReceiptItem{{Name: "Apples", Quantity: 1, Price: &price}}}
	if err := mem.SaveReceipt(ctx, old); err != nil {
		t.Fatalf("SaveReceipt: %v", err)
	}

	s, err := e.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if want := decimal.RequireFromString("187.5"); !s.RecentSpend.Equal(want) {
		t.Fatalf("RecentSpend = %s, want %s", s.RecentSpend, want)
	}
}

func TestReestimate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	e, clk := newTestEngine(t, s)
	it := mustAdd(t, e, NewItem{Name: "Beans", Quantity: 10})
	clk.Advance(day)
	if _, err := e.RecordQuantity(ctx, it.ID, 9); err != nil {
		t.Fatalf("RecordQuantity: %v", err)
	}

	// a stale stored rate is corrected from history
	stale, _ := s.Item(ctx, it.ID)
	stale.BurnRate = model.KnownRate(5)
	if err := s.Apply(ctx, store.Batch{Update: []model.InventoryItem{stale}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	var calls atomic.Int64
	res, err := e.Reestimate(ctx, func(current, total int) { calls.Add(1) })
	if err != nil {
		t.Fatalf("Reestimate: %v", err)
	}
	if res.Items != 1 || res.Changed != 1 || calls.Load() != 1 {
		t.Fatalf("result = %+v, progress calls %d", res, calls.Load())
	}
	if v, _ := e.Item(ctx, it.ID); v.BurnRate.Value != 1 {
		t.Fatalf("BurnRate = %+v, want 1", v.BurnRate)
	}
}
