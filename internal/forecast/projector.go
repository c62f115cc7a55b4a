package forecast

import (
	"math"

	"github.com/theirongolddev/restock/internal/model"
)

// Projection is the derived runway of one item.
type Projection struct {
	DaysRemaining float64 // +Inf when the rate is zero or unknown
	Status        model.Status
}

// Finite reports whether the item is projected to run out.
func (p Projection) Finite() bool { return !math.IsInf(p.DaysRemaining, 1) }

// Projector classifies items by days of stock remaining.
type Projector struct {
	CriticalDays       float64
	LowDays            float64
	DefaultReorderDays float64
}

// Project computes days remaining and status. Status is checked in order:
// critical, then low against max(LowDays, reorder threshold), then good.
func (p Projector) Project(quantity float64, rate model.BurnRate, reorderThreshold *float64) Projection {
	days := math.Inf(1)
	if rate.Positive() {
		days = quantity / rate.Value
	}

	threshold := p.DefaultReorderDays
	if reorderThreshold != nil {
		threshold = *reorderThreshold
	}

	status := model.StatusGood
	switch {
	case days <= p.CriticalDays:
		status = model.StatusCritical
	case days <= math.Max(p.LowDays, threshold):
		status = model.StatusLow
	}
	return Projection{DaysRemaining: days, Status: status}
}

// ProjectItem projects a stored item.
func (p Projector) ProjectItem(it model.InventoryItem) Projection {
	return p.Project(it.Quantity, it.BurnRate, it.ReorderThreshold)
}

// View attaches the projection to an item for callers.
func (p Projector) View(it model.InventoryItem) model.ItemView {
	proj := p.ProjectItem(it)
	v := model.ItemView{InventoryItem: it, Status: proj.Status}
	if proj.Finite() {
		d := proj.DaysRemaining
		v.DaysRemaining = &d
	}
	return v
}
