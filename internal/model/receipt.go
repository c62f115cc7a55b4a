package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptSource is where a receipt was captured from.
type ReceiptSource string

const (
	SourceEmail ReceiptSource = "email"
	SourcePhoto ReceiptSource = "photo"
)

// Receipt is a batch of purchased lines awaiting or past reconciliation.
// Processed is terminal once set.
type Receipt struct {
	ID          string        `json:"id"`
	Source      ReceiptSource `json:"source"`
	Items       []ReceiptItem `json:"items"`
	Processed   bool          `json:"processed"`
	CreatedAt   time.Time     `json:"createdAt"`
	ProcessedAt *time.Time    `json:"processedAt,omitempty"`
}

// ReceiptItem is one parsed line of a receipt.
type ReceiptItem struct {
	Name               string           `json:"name"`
	Quantity           float64          `json:"quantity"`
	Unit               string           `json:"unit,omitempty"`
	Price              *decimal.Decimal `json:"price,omitempty"`
	Category           string           `json:"category,omitempty"`
	MatchedInventoryID string           `json:"matchedInventoryId,omitempty"`
	MatchStrategy      string           `json:"matchStrategy,omitempty"`
}

// Total sums the prices of all priced lines.
func (r Receipt) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range r.Items {
		if it.Price != nil {
			total = total.Add(*it.Price)
		}
	}
	return total
}
