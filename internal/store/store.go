// Package store persists inventory, history, receipts and the shopping list.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/theirongolddev/restock/internal/model"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an item's stored revision differs from the expected one.
	ErrConflict = errors.New("revision conflict")
	// ErrReceiptProcessed is returned when a batch tries to process a receipt twice.
	ErrReceiptProcessed = errors.New("receipt already processed")
)

// Batch is a set of writes applied atomically by Store.Apply.
//
// Updated items carry the revision they were read at; the stored revision
// must still match and is incremented on write. Created items start at
// revision 1. Observations are appended after items are written. A non-nil
// Receipt is stored as processed and fails the batch with
// ErrReceiptProcessed if it already was.
type Batch struct {
	Create       []model.InventoryItem
	Update       []model.InventoryItem
	Observations []model.ConsumptionObservation
	Receipt      *model.Receipt
}

// Store is the persistence boundary of the engine.
type Store interface {
	Items(ctx context.Context) ([]model.InventoryItem, error)
	Item(ctx context.Context, id string) (model.InventoryItem, error)
	Apply(ctx context.Context, b Batch) error
	// DeleteItem removes the item with its history and shopping-list entries.
	DeleteItem(ctx context.Context, id string) error
	// History returns up to limit most recent observations, oldest first.
	History(ctx context.Context, itemID string, limit int) ([]model.ConsumptionObservation, error)

	SaveReceipt(ctx context.Context, r model.Receipt) error
	Receipt(ctx context.Context, id string) (model.Receipt, error)
	// Receipts returns up to limit receipts, newest first.
	Receipts(ctx context.Context, limit int) ([]model.Receipt, error)
	// ReceiptsSince returns receipts created at or after since, newest first.
	ReceiptsSince(ctx context.Context, since time.Time) ([]model.Receipt, error)

	ShoppingList(ctx context.Context) ([]model.ShoppingListItem, error)
	ApplyShopping(ctx context.Context, upserts []model.ShoppingListItem, removeIDs []string) error

	Close() error
}

// Open returns the backend named by driver.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "memory":
		return NewMemory(), nil
	case "", "sqlite":
		return OpenSQLite(dsn)
	case "mysql":
		return OpenMySQL(dsn)
	case "postgres":
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func validateBatch(b Batch) error {
	seen := make(map[string]bool, len(b.Create)+len(b.Update))
	for _, it := range b.Create {
		if it.ID == "" {
			return errors.New("create: item without id")
		}
		if seen[it.ID] {
			return fmt.Errorf("item %s written twice in one batch", it.ID)
		}
		seen[it.ID] = true
	}
	for _, it := range b.Update {
		if seen[it.ID] {
			return fmt.Errorf("item %s written twice in one batch", it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}
