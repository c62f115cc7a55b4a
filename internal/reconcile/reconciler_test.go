package reconcile

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/theirongolddev/restock/internal/model"
)

var now = time.Date(2025, 4, 2, 18, 30, 0, 0, time.UTC)

func testReconciler() *Reconciler {
	n := 0
	return &Reconciler{
		Strategies:      DefaultStrategies,
		FuzzyThreshold:  0.3,
		DefaultCategory: "Uncategorized",
		DefaultLocation: "Pantry",
		NewID: func() string {
			n++
			return fmt.Sprintf("new-%d", n)
		},
	}
}

func item(id, name, category string, qty float64) model.InventoryItem {
	return model.InventoryItem{ID: id, Name: name, Category: category, Location: "Fridge", Quantity: qty, Revision: 3}
}

func receipt(lines ...model.ReceiptItem) model.Receipt {
	return model.Receipt{ID: "r1", Source: model.SourcePhoto, Items: lines}
}

func TestReconcile_SameCategoryWinsOverAnyCategory(t *testing.T) {
	inv := []model.InventoryItem{
		item("dairy", "Milk", "Dairy", 1),
		item("oat", "Milk", "Non-Dairy", 1),
	}
	res, err := testReconciler().Reconcile(receipt(model.ReceiptItem{Name: "Milk", Category: "Dairy", Quantity: 2}), inv, now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Updated) != 1 || res.Updated[0].ID != "dairy" {
		t.Fatalf("Updated = %+v, want the Dairy milk only", res.Updated)
	}
	if res.Updated[0].Quantity != 3 {
		t.Fatalf("Quantity = %v, want 3", res.Updated[0].Quantity)
	}
	if res.Updated[0].Revision != 3 {
		t.Fatalf("Revision = %d, want the revision that was read", res.Updated[0].Revision)
	}
	line := res.Receipt.Items[0]
	if line.MatchedInventoryID != "dairy" || line.MatchStrategy != ExactSameCategory.String() {
		t.Fatalf("line = %+v", line)
	}
	if len(res.Created) != 0 {
		t.Fatalf("Created = %+v, want none", res.Created)
	}
}

func TestReconcile_AmbiguousFallsThroughToNewItem(t *testing.T) {
	inv := []model.InventoryItem{
		item("dairy", "Milk", "Dairy", 1),
		item("oat", "Milk", "Non-Dairy", 1),
	}
	res, err := testReconciler().Reconcile(receipt(model.ReceiptItem{Name: "milk", Quantity: 1}), inv, now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Updated) != 0 {
		t.Fatalf("Updated = %+v, want none for an ambiguous line", res.Updated)
	}
	if len(res.Created) != 1 {
		t.Fatalf("Created = %d items, want 1", len(res.Created))
	}
	got := res.Created[0]
	if got.Category != "Uncategorized" || got.Location != "Pantry" {
		t.Fatalf("new item = %+v, want Uncategorized/Pantry defaults", got)
	}
	if got.BurnRate.Known {
		t.Fatalf("new item burn rate = %+v, want unknown", got.BurnRate)
	}
	if res.Receipt.Items[0].MatchStrategy != NewItemStrategy {
		t.Fatalf("MatchStrategy = %q, want %q", res.Receipt.Items[0].MatchStrategy, NewItemStrategy)
	}
}

func TestReconcile_ExactAnyCategory(t *testing.T) {
	inv := []model.InventoryItem{item("eggs", "Eggs", "Dairy", 6)}
	res, err := testReconciler().Reconcile(receipt(model.ReceiptItem{Name: " EGGS ", Category: "Protein", Quantity: 12}), inv, now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Updated) != 1 || res.Updated[0].Quantity != 18 {
		t.Fatalf("Updated = %+v, want eggs at 18", res.Updated)
	}
	if res.Matches[0].Strategy != ExactAnyCategory.String() {
		t.Fatalf("Strategy = %q, want %q", res.Matches[0].Strategy, ExactAnyCategory)
	}
}

func TestReconcile_FuzzyMatchWithinCategory(t *testing.T) {
	inv := []model.InventoryItem{
		item("wm", "Whole Milk", "Dairy", 0.5),
		item("bread", "Sourdough Bread", "Bakery", 1),
	}
	res, err := testReconciler().Reconcile(receipt(model.ReceiptItem{Name: "WHOLE MILK 1L", Category: "dairy", Quantity: 1}), inv, now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Updated) != 1 || res.Updated[0].ID != "wm" {
		t.Fatalf("Updated = %+v, want whole milk", res.Updated)
	}
	if res.Matches[0].Strategy != FuzzySameCategory.String() {
		t.Fatalf("Strategy = %q, want fuzzy", res.Matches[0].Strategy)
	}
}

func TestReconcile_FuzzyRespectsCategory(t *testing.T) {
	inv := []model.InventoryItem{item("wm", "Whole Milk", "Dairy", 0.5)}
	res, err := testReconciler().Reconcile(receipt(model.ReceiptItem{Name: "Whole Milks", Category: "Cleaning", Quantity: 1}), inv, now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Created) != 1 || len(res.Updated) != 0 {
		t.Fatalf("created %d updated %d, want a new item", len(res.Created), len(res.Updated))
	}
	if res.Created[0].Category != "Cleaning" {
		t.Fatalf("Category = %q, want Cleaning", res.Created[0].Category)
	}
}

func TestReconcile_RepeatedUnknownLinesMerge(t *testing.T) {
	res, err := testReconciler().Reconcile(receipt(
		model.ReceiptItem{Name: "Basil", Quantity: 1},
		model.ReceiptItem{Name: "basil", Quantity: 2},
	), nil, now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Created) != 1 {
		t.Fatalf("Created = %d, want 1 merged item", len(res.Created))
	}
	if res.Created[0].Quantity != 3 {
		t.Fatalf("Quantity = %v, want 3", res.Created[0].Quantity)
	}
	if len(res.Observations) != 2 {
		t.Fatalf("Observations = %d, want 2", len(res.Observations))
	}
}

func TestReconcile_AppendsRestockObservation(t *testing.T) {
	inv := []model.InventoryItem{item("rice", "Rice", "Grains", 2)}
	res, err := testReconciler().Reconcile(receipt(model.ReceiptItem{Name: "Rice", Category: "Grains", Quantity: 5}), inv, now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Observations) != 1 {
		t.Fatalf("Observations = %d, want 1", len(res.Observations))
	}
	o := res.Observations[0]
	if o.ItemID != "rice" || o.QuantityAfter != 7 || o.Kind != model.ObservationRestock || !o.Timestamp.Equal(now) {
		t.Fatalf("observation = %+v", o)
	}
	if !res.Receipt.Processed || res.Receipt.ProcessedAt == nil {
		t.Fatal("receipt not marked processed in result")
	}
}

func TestReconcile_AlreadyProcessed(t *testing.T) {
	r := receipt(model.ReceiptItem{Name: "Rice", Quantity: 1})
	r.Processed = true
	_, err := testReconciler().Reconcile(r, nil, now)
	if !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("err = %v, want ErrAlreadyProcessed", err)
	}
}

func TestReconcile_InvalidLine(t *testing.T) {
	inv := []model.InventoryItem{item("rice", "Rice", "Grains", 2)}
	_, err := testReconciler().Reconcile(receipt(
		model.ReceiptItem{Name: "Rice", Quantity: 1},
		model.ReceiptItem{Name: "Beans", Quantity: -1},
	), inv, now)
	if !errors.Is(err, ErrInvalidLine) {
		t.Fatalf("err = %v, want ErrInvalidLine", err)
	}
	if inv[0].Quantity != 2 {
		t.Fatalf("input inventory mutated: qty %v", inv[0].Quantity)
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Whole Milk 1L":      "whole milk",
		"  Eggs, Free-Range": "eggs free range",
		"Coca-Cola 6x 330ml": "coca cola",
		"7Up":                "7up",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDistance(t *testing.T) {
	if d := Distance("whole milk", "whole milk"); d != 0 {
		t.Fatalf("identical distance = %v", d)
	}
	if d := Distance("whole milk", "sourdough bread"); d < 0.5 {
		t.Fatalf("unrelated distance = %v, want >= 0.5", d)
	}
	// one-letter typo
	if d := Distance("yoghurt", "yogurt"); math.Abs(d-1.0/7) > 1e-9 {
		t.Fatalf("typo distance = %v, want 1/7", d)
	}
	if d := Distance("", ""); d != 1 {
		t.Fatalf("empty distance = %v, want 1", d)
	}
}

func TestReconcile_SizeOnlyNamesDoNotFuzzyMatch(t *testing.T) {
	inv := []model.InventoryItem{item("flour", "1kg", "Baking", 2)}
	res, err := testReconciler().Reconcile(receipt(model.ReceiptItem{Name: "500ml", Category: "Baking", Quantity: 1}), inv, now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(res.Updated) != 0 {
		t.Fatalf("Updated = %+v, want none", res.Updated)
	}
	if len(res.Created) != 1 || res.Created[0].Name != "500ml" {
		t.Fatalf("Created = %+v, want a new 500ml item", res.Created)
	}
}
