package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
	"github.com/theirongolddev/restock/internal/replenish"
)

func TestHandleEvent_Receipt(t *testing.T) {
	c := New()
	ev := pipeline.Event{
		Kind: pipeline.EventReceiptReconciled,
		Receipt: &model.Receipt{
			Source: model.SourcePhoto,
			Items: []model.ReceiptItem{
				{Name: "Milk", MatchStrategy: "exact_same_category"},
				{Name: "Bread", MatchStrategy: "new"},
				{Name: "Brie", MatchStrategy: "new"},
			},
		},
	}
	require.NoError(t, c.HandleEvent(context.Background(), ev))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.receipts.WithLabelValues("photo")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.receiptLines.WithLabelValues("new")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.receiptLines.WithLabelValues("exact_same_category")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues("receipt_reconciled")))
}

func TestHandleEvent_Shopping(t *testing.T) {
	c := New()
	ev := pipeline.Event{
		Kind: pipeline.EventShoppingChanged,
		Shopping: []replenish.Change{
			{Kind: replenish.Created, Entry: model.ShoppingListItem{Priority: model.PriorityCritical}},
			{Kind: replenish.Created, Entry: model.ShoppingListItem{Priority: model.PriorityCritical}},
			{Kind: replenish.Removed, Entry: model.ShoppingListItem{Priority: model.PriorityMedium}},
		},
	}
	require.NoError(t, c.HandleEvent(context.Background(), ev))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.shoppingChanges.WithLabelValues("created", "critical")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.shoppingChanges.WithLabelValues("removed", "medium")))
}

func TestObserveSummaryAndConflicts(t *testing.T) {
	c := New()
	c.ObserveSummary(model.Summary{GoodItems: 4, LowItems: 2, CriticalItems: 1, UnknownRateItems: 3, ActiveShoppingEntries: 3})
	c.ConflictRetried("consume")
	c.ConflictRetried("consume")

	assert.Equal(t, 4.0, testutil.ToFloat64(c.itemsByStatus.WithLabelValues("good")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.itemsByStatus.WithLabelValues("critical")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.activeEntries))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.conflicts.WithLabelValues("consume")))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `restock_items{status="low"} 2`), string(body))
}
