package pipeline

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/theirongolddev/restock/internal/model"
)

// ReceiptLine is one parsed line handed over by the OCR collaborator.
type ReceiptLine struct {
	Name     string           `json:"name" validate:"required,max=255"`
	Quantity float64          `json:"quantity" validate:"gt=0"`
	Unit     string           `json:"unit,omitempty" validate:"max=32"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Category string           `json:"category,omitempty" validate:"max=128"`
}

// ReceiptSubmission is a receipt awaiting reconciliation.
type ReceiptSubmission struct {
	Source model.ReceiptSource `json:"source" validate:"required,oneof=email photo"`
	Items  []ReceiptLine       `json:"items" validate:"required,min=1,dive"`
}

func (s ReceiptSubmission) validate() error {
	if err := check(s); err != nil {
		return err
	}
	for i, line := range s.Items {
		if math.IsInf(line.Quantity, 0) || math.IsNaN(line.Quantity) {
			return invalid(fmt.Sprintf("Items[%d].Quantity", i), "finite")
		}
		if line.Price != nil && line.Price.IsNegative() {
			return invalid(fmt.Sprintf("Items[%d].Price", i), "gte=0")
		}
	}
	return nil
}

// NewItem describes an item added by hand.
type NewItem struct {
	Name             string   `json:"name" validate:"required,max=255"`
	Category         string   `json:"category" validate:"max=128"`
	Location         string   `json:"location" validate:"max=128"`
	Quantity         float64  `json:"quantity" validate:"gte=0"`
	Unit             string   `json:"unit" validate:"max=32"`
	UnitStep         float64  `json:"unitStep" validate:"gte=0"`
	ReorderThreshold *float64 `json:"reorderThreshold" validate:"omitempty,gt=0"`
	AutoReorder      bool     `json:"autoReorderEnabled"`
}

// ItemSettings changes item attributes other than quantity. Nil fields are left as they are.
type ItemSettings struct {
	Name                  *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Category              *string  `json:"category" validate:"omitempty,max=128"`
	Location              *string  `json:"location" validate:"omitempty,max=128"`
	Unit                  *string  `json:"unit" validate:"omitempty,max=32"`
	UnitStep              *float64 `json:"unitStep" validate:"omitempty,gt=0"`
	ReorderThreshold      *float64 `json:"reorderThreshold" validate:"omitempty,gt=0"`
	ClearReorderThreshold bool     `json:"clearReorderThreshold"`
	AutoReorder           *bool    `json:"autoReorderEnabled"`
}

func (s ItemSettings) apply(it *model.InventoryItem) {
	if s.Name != nil {
		it.Name = *s.Name
	}
	if s.Category != nil {
		it.Category = *s.Category
	}
	if s.Location != nil {
		it.Location = *s.Location
	}
	if s.Unit != nil {
		it.Unit = *s.Unit
	}
	if s.UnitStep != nil {
		it.UnitStep = *s.UnitStep
	}
	if s.ClearReorderThreshold {
		it.ReorderThreshold = nil
	}
	if s.ReorderThreshold != nil {
		v := *s.ReorderThreshold
		it.ReorderThreshold = &v
	}
	if s.AutoReorder != nil {
		it.AutoReorder = *s.AutoReorder
	}
}

func validQuantity(field string, q float64) error {
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return invalid(field, "finite")
	}
	if q < 0 {
		return invalid(field, "gte=0")
	}
	return nil
}
