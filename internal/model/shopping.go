package model

import "time"

// Priority orders shopping-list entries by urgency.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
)

// Rank returns 0 for the most urgent priority.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	default:
		return 2
	}
}

// ShoppingListItem is a suggested purchase for one inventory item.
// At most one unpurchased entry exists per item.
type ShoppingListItem struct {
	ID                string     `json:"id"`
	InventoryItemID   string     `json:"inventoryItemId"`
	Name              string     `json:"name"`
	Unit              string     `json:"unit"`
	SuggestedQuantity float64    `json:"suggestedQuantity"`
	Priority          Priority   `json:"priority"`
	Purchased         bool       `json:"purchased"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
	PurchasedAt       *time.Time `json:"purchasedAt,omitempty"`
}

// Active reports whether the entry still awaits purchase.
func (s ShoppingListItem) Active() bool { return !s.Purchased }
