// Package metrics exposes engine activity as Prometheus collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/pipeline"
)

// Collector counts engine events on its own registry. It is a
// pipeline.Listener and a pipeline.ConflictObserver.
type Collector struct {
	registry *prometheus.Registry

	receipts        *prometheus.CounterVec
	receiptLines    *prometheus.CounterVec
	events          *prometheus.CounterVec
	shoppingChanges *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	itemsByStatus   *prometheus.GaugeVec
	unknownRate     prometheus.Gauge
	activeEntries   prometheus.Gauge
}

// New creates a collector with every metric registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		receipts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restock_receipts_reconciled_total",
				Help: "Receipts applied to inventory",
			},
			[]string{"source"},
		),
		receiptLines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restock_receipt_lines_total",
				Help: "Reconciled receipt lines by the strategy that placed them",
			},
			[]string{"strategy"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restock_events_total",
				Help: "Committed engine changes by kind",
			},
			[]string{"kind"},
		),
		shoppingChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restock_shopping_changes_total",
				Help: "Shopping-list entry changes by kind and priority",
			},
			[]string{"kind", "priority"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "restock_conflicts_retried_total",
				Help: "Revision conflicts retried by operation",
			},
			[]string{"op"},
		),
		itemsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "restock_items",
				Help: "Tracked items by projected status",
			},
			[]string{"status"},
		),
		unknownRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "restock_items_unknown_rate",
			Help: "Items without a burn-rate estimate",
		}),
		activeEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "restock_shopping_entries_active",
			Help: "Unpurchased shopping-list entries",
		}),
	}
	c.registry.MustRegister(
		c.receipts,
		c.receiptLines,
		c.events,
		c.shoppingChanges,
		c.conflicts,
		c.itemsByStatus,
		c.unknownRate,
		c.activeEntries,
	)
	return c
}

// Registry returns the registry the collectors live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// HandleEvent implements pipeline.Listener.
func (c *Collector) HandleEvent(_ context.Context, ev pipeline.Event) error {
	c.events.WithLabelValues(string(ev.Kind)).Inc()

	if ev.Kind == pipeline.EventReceiptReconciled && ev.Receipt != nil {
		c.receipts.WithLabelValues(string(ev.Receipt.Source)).Inc()
		for _, line := range ev.Receipt.Items {
			c.receiptLines.WithLabelValues(line.MatchStrategy).Inc()
		}
	}
	for _, ch := range ev.Shopping {
		c.shoppingChanges.WithLabelValues(string(ch.Kind), string(ch.Entry.Priority)).Inc()
	}
	return nil
}

// ConflictRetried implements pipeline.ConflictObserver.
func (c *Collector) ConflictRetried(op string) {
	c.conflicts.WithLabelValues(op).Inc()
}

// ObserveSummary sets the point-in-time gauges.
func (c *Collector) ObserveSummary(s model.Summary) {
	c.itemsByStatus.WithLabelValues(string(model.StatusGood)).Set(float64(s.GoodItems))
	c.itemsByStatus.WithLabelValues(string(model.StatusLow)).Set(float64(s.LowItems))
	c.itemsByStatus.WithLabelValues(string(model.StatusCritical)).Set(float64(s.CriticalItems))
	c.unknownRate.Set(float64(s.UnknownRateItems))
	c.activeEntries.Set(float64(s.ActiveShoppingEntries))
}

var (
	_ pipeline.Listener         = (*Collector)(nil)
	_ pipeline.ConflictObserver = (*Collector)(nil)
)

