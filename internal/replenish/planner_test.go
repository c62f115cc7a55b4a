package replenish

import (
	"fmt"
	"testing"
	"time"

	"github.com/theirongolddev/restock/internal/forecast"
	"github.com/theirongolddev/restock/internal/model"
)

var now = time.Date(2025, 5, 10, 8, 0, 0, 0, time.UTC)

func testPlanner() Planner {
	n := 0
	return Planner{
		Projector:        forecast.Projector{CriticalDays: 2, LowDays: 5, DefaultReorderDays: 5},
		HighPriorityDays: 3,
		LookaheadDays:    14,
		NewID: func() string {
			n++
			return fmt.Sprintf("e%d", n)
		},
	}
}

func invItem(id string, qty float64, rate model.BurnRate) model.InventoryItem {
	return model.InventoryItem{
		ID:              id,
		Name:            "item " + id,
		Unit:            "unit",
		Quantity:        qty,
		TypicalQuantity: qty,
		BurnRate:        rate,
		LastUpdated:     now.Add(-time.Hour),
	}
}

func countKind(changes []Change, kind ChangeKind) int {
	n := 0
	for _, c := range changes {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func TestPlan_CreatesEntriesWithPriority(t *testing.T) {
	p := testPlanner()
	items := []model.InventoryItem{
		invItem("crit", 1, model.KnownRate(1)),  // 1 day
		invItem("high", 3, model.KnownRate(1)),  // 3 days
		invItem("med", 4.5, model.KnownRate(1)), // 4.5 days
		invItem("good", 20, model.KnownRate(1)), // 20 days
		invItem("unknown", 1, model.UnknownRate()),
	}
	changes := p.Plan(items, nil, nil, now)
	if len(changes) != 3 {
		t.Fatalf("changes = %d, want 3: %+v", len(changes), changes)
	}
	want := map[string]model.Priority{
		"crit": model.PriorityCritical,
		"high": model.PriorityHigh,
		"med":  model.PriorityMedium,
	}
	for _, c := range changes {
		if c.Kind != Created {
			t.Fatalf("kind = %s, want created", c.Kind)
		}
		if got := c.Entry.Priority; got != want[c.Entry.InventoryItemID] {
			t.Fatalf("%s priority = %s, want %s", c.Entry.InventoryItemID, got, want[c.Entry.InventoryItemID])
		}
	}
}

func TestPlan_Idempotent(t *testing.T) {
	p := testPlanner()
	items := []model.InventoryItem{
		invItem("a", 1, model.KnownRate(0.5)),
		invItem("b", 4, model.KnownRate(1)),
	}
	first := p.Plan(items, nil, nil, now)
	list := Apply(nil, first)
	if len(list) != 2 {
		t.Fatalf("list = %d entries, want 2", len(list))
	}

	second := p.Plan(items, list, nil, now.Add(time.Minute))
	if len(second) != 0 {
		t.Fatalf("second plan produced %d changes, want 0: %+v", len(second), second)
	}
	if again := Apply(list, second); len(again) != len(list) || again[0] != list[0] || again[1] != list[1] {
		t.Fatalf("list changed on regeneration: %+v vs %+v", again, list)
	}
}

func TestPlan_UpdatesInPlace(t *testing.T) {
	p := testPlanner()
	it := invItem("a", 4, model.KnownRate(1))
	list := Apply(nil, p.Plan([]model.InventoryItem{it}, nil, nil, now))
	if list[0].Priority != model.PriorityMedium {
		t.Fatalf("priority = %s, want medium", list[0].Priority)
	}

	it.Quantity = 1.5
	changes := p.Plan([]model.InventoryItem{it}, list, []string{"a"}, now)
	if len(changes) != 1 || changes[0].Kind != Updated {
		t.Fatalf("changes = %+v, want one update", changes)
	}
	if changes[0].Entry.ID != list[0].ID {
		t.Fatalf("update replaced entry id %s with %s", list[0].ID, changes[0].Entry.ID)
	}
	if changes[0].Entry.Priority != model.PriorityCritical {
		t.Fatalf("priority = %s, want critical", changes[0].Entry.Priority)
	}
}

func TestPlan_RestockCancelsNeed(t *testing.T) {
	p := testPlanner()
	it := invItem("milk", 1, model.KnownRate(1))
	list := Apply(nil, p.Plan([]model.InventoryItem{it}, nil, nil, now))
	if len(list) != 1 || list[0].Priority != model.PriorityCritical {
		t.Fatalf("list = %+v, want one critical entry", list)
	}

	it.Quantity = 8 // 8 days > 5
	changes := p.Plan([]model.InventoryItem{it}, list, []string{"milk"}, now)
	if len(changes) != 1 || changes[0].Kind != Removed {
		t.Fatalf("changes = %+v, want a removal", changes)
	}
	if left := Apply(list, changes); len(left) != 0 {
		t.Fatalf("list = %+v, want empty", left)
	}
}

func TestPlan_ScopeLimitsWork(t *testing.T) {
	p := testPlanner()
	items := []model.InventoryItem{
		invItem("a", 1, model.KnownRate(1)),
		invItem("b", 1, model.KnownRate(1)),
	}
	changes := p.Plan(items, nil, []string{"b"}, now)
	if len(changes) != 1 || changes[0].Entry.InventoryItemID != "b" {
		t.Fatalf("changes = %+v, want only b", changes)
	}
}

func TestPlan_RemovesOrphans(t *testing.T) {
	p := testPlanner()
	list := []model.ShoppingListItem{
		{ID: "x", InventoryItemID: "gone", Priority: model.PriorityHigh},
		{ID: "y", InventoryItemID: "gone-too", Purchased: true},
	}
	changes := p.Plan(nil, list, nil, now)
	if len(changes) != 1 || changes[0].Kind != Removed || changes[0].Entry.ID != "x" {
		t.Fatalf("changes = %+v, want removal of x", changes)
	}

	scoped := p.Plan(nil, list, []string{"gone"}, now)
	if countKind(scoped, Removed) != 1 {
		t.Fatalf("scoped changes = %+v, want removal for deleted item", scoped)
	}
}

func TestPlan_PendingPurchaseSuppressesRelisting(t *testing.T) {
	p := testPlanner()
	it := invItem("a", 1, model.KnownRate(1))
	bought := now.Add(-time.Minute) // after LastUpdated
	list := []model.ShoppingListItem{{ID: "old", InventoryItemID: "a", Purchased: true, PurchasedAt: &bought}}

	if changes := p.Plan([]model.InventoryItem{it}, list, nil, now); len(changes) != 0 {
		t.Fatalf("changes = %+v, want none while the purchase is pending", changes)
	}

	it.LastUpdated = now
	if changes := p.Plan([]model.InventoryItem{it}, list, nil, now); countKind(changes, Created) != 1 {
		t.Fatalf("changes = %+v, want a new entry after the next update", changes)
	}
}

func TestSuggestQuantity(t *testing.T) {
	p := testPlanner()

	it := invItem("a", 2, model.KnownRate(0.5)) // 0.5*14 - 2 = 5
	if got := p.SuggestQuantity(it); got != 5 {
		t.Fatalf("SuggestQuantity = %v, want 5", got)
	}

	it = invItem("b", 1, model.KnownRate(0.3)) // 4.2 - 1 = 3.2 -> 4
	if got := p.SuggestQuantity(it); got != 4 {
		t.Fatalf("SuggestQuantity = %v, want 4", got)
	}

	it = invItem("c", 1, model.KnownRate(0.3))
	it.UnitStep = 6 // eggs by the half dozen
	if got := p.SuggestQuantity(it); got != 6 {
		t.Fatalf("SuggestQuantity = %v, want 6", got)
	}

	it = invItem("d", 0, model.UnknownRate())
	it.TypicalQuantity = 3
	if got := p.SuggestQuantity(it); got != 3 {
		t.Fatalf("SuggestQuantity(unknown) = %v, want last known quantity 3", got)
	}

	it = invItem("e", 0, model.UnknownRate())
	it.TypicalQuantity = 0
	if got := p.SuggestQuantity(it); got != 1 {
		t.Fatalf("SuggestQuantity(no history) = %v, want one step", got)
	}
}
