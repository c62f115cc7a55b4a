package model

import (
	"encoding/json"
	"math"
	"time"
)

// Status is the urgency classification of an inventory item.
// It is never stored; forecast.Projector derives it on demand.
type Status string

const (
	StatusGood     Status = "good"
	StatusLow      Status = "low"
	StatusCritical Status = "critical"
)

// BurnRate is an estimated consumption rate in units per day.
// The zero value is an unknown rate, which is distinct from a known rate of 0.
type BurnRate struct {
	Value float64
	Known bool
}

// UnknownRate returns a rate for items without enough history.
func UnknownRate() BurnRate { return BurnRate{} }

// KnownRate returns a rate with value v.
func KnownRate(v float64) BurnRate { return BurnRate{Value: v, Known: true} }

// Positive reports whether the rate is known and strictly above zero.
func (r BurnRate) Positive() bool { return r.Known && r.Value > 0 }

// Ptr returns nil for an unknown rate.
func (r BurnRate) Ptr() *float64 {
	if !r.Known {
		return nil
	}
	v := r.Value
	return &v
}

// MarshalJSON encodes an unknown rate as null.
func (r BurnRate) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Ptr())
}

// UnmarshalJSON decodes null as an unknown rate.
func (r *BurnRate) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*r = UnknownRate()
		return nil
	}
	*r = KnownRate(*v)
	return nil
}

// InventoryItem is a tracked household product.
type InventoryItem struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Category         string    `json:"category"`
	Location         string    `json:"location"`
	Quantity         float64   `json:"quantity"`
	Unit             string    `json:"unit"`
	UnitStep         float64   `json:"unitStep"`
	BurnRate         BurnRate  `json:"burnRate"`
	ReorderThreshold *float64  `json:"reorderThreshold,omitempty"` // days; nil uses the configured default
	AutoReorder      bool      `json:"autoReorderEnabled"`
	TypicalQuantity  float64   `json:"typicalQuantity"` // last known non-zero quantity
	LastUpdated      time.Time `json:"lastUpdated"`
	CreatedAt        time.Time `json:"createdAt"`
	Revision         int64     `json:"revision"`
}

// Step returns the purchase granularity, defaulting to one unit.
func (it InventoryItem) Step() float64 {
	if it.UnitStep <= 0 {
		return 1
	}
	return it.UnitStep
}

// SetQuantity changes the on-hand quantity and remembers it when non-zero.
func (it *InventoryItem) SetQuantity(q float64, at time.Time) {
	it.Quantity = q
	if q > 0 {
		it.TypicalQuantity = q
	}
	it.LastUpdated = at
}

// ObservationKind records what caused a quantity observation.
type ObservationKind string

const (
	ObservationInitial ObservationKind = "initial"
	ObservationManual  ObservationKind = "manual"
	ObservationConsume ObservationKind = "consume"
	ObservationRestock ObservationKind = "restock"
)

// ConsumptionObservation is an append-only quantity fact for one item.
type ConsumptionObservation struct {
	ItemID        string          `json:"itemId"`
	QuantityAfter float64         `json:"quantityAfter"`
	Timestamp     time.Time       `json:"timestamp"`
	Kind          ObservationKind `json:"kind"`
}

// ItemView is an inventory item together with its projection.
type ItemView struct {
	InventoryItem
	Status        Status   `json:"status"`
	DaysRemaining *float64 `json:"daysRemaining"` // nil means it never runs out at the current rate
}

// Days returns the projected days remaining, +Inf when unbounded.
func (v ItemView) Days() float64 {
	if v.DaysRemaining == nil {
		return math.Inf(1)
	}
	return *v.DaysRemaining
}
