package pipeline

import (
	"context"
	"time"

	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/replenish"
)

// EventKind names a committed engine change.
type EventKind string

const (
	EventReceiptReconciled EventKind = "receipt_reconciled"
	EventItemAdded         EventKind = "item_added"
	EventItemChanged       EventKind = "item_changed"
	EventItemDeleted       EventKind = "item_deleted"
	EventShoppingChanged   EventKind = "shopping_list_changed"
	EventRatesReestimated  EventKind = "rates_reestimated"
)

// Event is delivered to listeners after a change is committed.
type Event struct {
	Kind     EventKind          `json:"kind"`
	At       time.Time          `json:"at"`
	Items    []model.ItemView   `json:"items,omitempty"`
	ItemID   string             `json:"itemId,omitempty"`
	Receipt  *model.Receipt     `json:"receipt,omitempty"`
	Shopping []replenish.Change `json:"shopping,omitempty"`
}

// Listener observes committed changes. A listener error is logged and never
// undoes or fails the operation that produced the event.
type Listener interface {
	HandleEvent(ctx context.Context, ev Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev Event) error

func (f ListenerFunc) HandleEvent(ctx context.Context, ev Event) error { return f(ctx, ev) }

// ConflictObserver is told about every revision conflict the engine retries.
type ConflictObserver interface {
	ConflictRetried(op string)
}
