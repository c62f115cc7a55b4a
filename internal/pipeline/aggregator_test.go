package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/restock/internal/model"
)

func view(name string, status model.Status, days *float64, known bool, auto bool) model.ItemView {
	v := model.ItemView{Status: status, DaysRemaining: days}
	v.Name = name
	v.AutoReorder = auto
	if known {
		v.BurnRate = model.KnownRate(1)
	}
	return v
}

func ptr(f float64) *float64 { return &f }

func TestSummarize_Counts(t *testing.T) {
	now := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	views := []model.ItemView{
		view("Milk", model.StatusCritical, ptr(1), true, true),
		view("Eggs", model.StatusLow, ptr(4), true, false),
		view("Rice", model.StatusGood, ptr(40), true, false),
		view("Saffron", model.StatusGood, nil, false, false),
	}
	entries := []model.ShoppingListItem{
		{ID: "a", Priority: model.PriorityCritical},
		{ID: "b", Priority: model.PriorityHigh},
		{ID: "c", Priority: model.PriorityMedium, Purchased: true},
	}
	p1 := decimal.RequireFromString("3.50")
	p2 := decimal.RequireFromString("10")
	receipts := []model.Receipt{
		{CreatedAt: now.Add(-24 * time.Hour), Items: []model.ReceiptItem{{Name: "Milk", Quantity: 2, Price: &p1}}},
		{CreatedAt: now.Add(-60 * 24 * time.Hour), Items: []model.ReceiptItem{{Name: "Rice", Quantity: 1, Price: &p2}}},
	}

	s := Summarize(views, entries, receipts, now, 14)

	if s.TotalItems != 4 || s.CriticalItems != 1 || s.LowItems != 1 || s.GoodItems != 2 {
		t.Fatalf("counts = %+v", s)
	}
	if s.UnknownRateItems != 1 {
		t.Fatalf("UnknownRateItems = %d, want 1", s.UnknownRateItems)
	}
	if s.ActiveShoppingEntries != 2 {
		t.Fatalf("ActiveShoppingEntries = %d, want 2", s.ActiveShoppingEntries)
	}
	if !s.RecentSpend.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("RecentSpend = %s, want 3.50 (old receipt excluded)", s.RecentSpend)
	}

	all := strings.Join(append(s.Insights, s.Recommendations...), "\n")
	for _, want := range []string{"Milk runs out first", "Reorder Milk today", "Auto-reorder is on for Milk", "Saffron"} {
		if !strings.Contains(all, want) {
			t.Errorf("summary missing %q:\n%s", want, all)
		}
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil, nil, time.Now(), 14)
	if s.TotalItems != 0 || len(s.Insights) != 1 || len(s.Recommendations) != 1 {
		t.Fatalf("summary = %+v", s)
	}
}

func TestNameList(t *testing.T) {
	if got := nameList([]string{"b", "a"}); got != "a, b" {
		t.Fatalf("nameList = %q", got)
	}
	if got := nameList([]string{"e", "d", "c", "b", "a"}); got != "a, b, c and 2 more" {
		t.Fatalf("nameList = %q", got)
	}
}
