package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/theirongolddev/restock/internal/model"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	items    map[string]model.InventoryItem
	history  map[string][]model.ConsumptionObservation
	receipts map[string]model.Receipt
	shopping map[string]model.ShoppingListItem
	order    []string // shopping entry ids in insertion order
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		items:    make(map[string]model.InventoryItem),
		history:  make(map[string][]model.ConsumptionObservation),
		receipts: make(map[string]model.Receipt),
		shopping: make(map[string]model.ShoppingListItem),
	}
}

func (m *Memory) Items(_ context.Context) ([]model.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.InventoryItem, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) Item(_ context.Context, id string) (model.InventoryItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return model.InventoryItem{}, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return it, nil
}

func (m *Memory) Apply(ctx context.Context, b Batch) error {
	if err := validateBatch(b); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, it := range b.Create {
		if _, ok := m.items[it.ID]; ok {
			return fmt.Errorf("item %s: %w", it.ID, ErrConflict)
		}
	}
	for _, it := range b.Update {
		cur, ok := m.items[it.ID]
		if !ok {
			return fmt.Errorf("item %s: %w", it.ID, ErrNotFound)
		}
		if cur.Revision != it.Revision {
			return fmt.Errorf("item %s at revision %d, expected %d: %w", it.ID, cur.Revision, it.Revision, ErrConflict)
		}
	}
	if b.Receipt != nil {
		if cur, ok := m.receipts[b.Receipt.ID]; ok && cur.Processed {
			return fmt.Errorf("receipt %s: %w", b.Receipt.ID, ErrReceiptProcessed)
		}
	}
	for _, o := range b.Observations {
		_, stored := m.items[o.ItemID]
		if !stored && !contains(b.Create, o.ItemID) {
			return fmt.Errorf("observation for item %s: %w", o.ItemID, ErrNotFound)
		}
	}

	for _, it := range b.Create {
		it.Revision = 1
		m.items[it.ID] = it
	}
	for _, it := range b.Update {
		it.Revision++
		m.items[it.ID] = it
	}
	for _, o := range b.Observations {
		m.history[o.ItemID] = append(m.history[o.ItemID], o)
	}
	if b.Receipt != nil {
		r := *b.Receipt
		r.Processed = true
		m.receipts[r.ID] = r
	}
	return nil
}

func contains(items []model.InventoryItem, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}

func (m *Memory) DeleteItem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	delete(m.items, id)
	delete(m.history, id)
	for eid, e := range m.shopping {
		if e.InventoryItemID == id {
			m.removeEntry(eid)
		}
	}
	return nil
}

func (m *Memory) History(_ context.Context, itemID string, limit int) ([]model.ConsumptionObservation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := m.history[itemID]
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]model.ConsumptionObservation, len(h))
	copy(out, h)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Memory) SaveReceipt(_ context.Context, r model.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.receipts[r.ID]; ok {
		return fmt.Errorf("receipt %s exists: %w", r.ID, ErrConflict)
	}
	r.Items = append([]model.ReceiptItem(nil), r.Items...)
	m.receipts[r.ID] = r
	return nil
}

func (m *Memory) Receipt(_ context.Context, id string) (model.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.receipts[id]
	if !ok {
		return model.Receipt{}, fmt.Errorf("receipt %s: %w", id, ErrNotFound)
	}
	r.Items = append([]model.ReceiptItem(nil), r.Items...)
	return r, nil
}

func (m *Memory) Receipts(_ context.Context, limit int) ([]model.Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Receipt, 0, len(m.receipts))
	for _, r := range m.receipts {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ReceiptsSince(ctx context.Context, since time.Time) ([]model.Receipt, error) {
	all, err := m.Receipts(ctx, 0)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, r := range all {
		if !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) ShoppingList(_ context.Context) ([]model.ShoppingListItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ShoppingListItem, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.shopping[id])
	}
	return out, nil
}

func (m *Memory) ApplyShopping(ctx context.Context, upserts []model.ShoppingListItem, removeIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, e := range upserts {
		if _, ok := m.items[e.InventoryItemID]; !ok {
			return fmt.Errorf("shopping entry for item %s: %w", e.InventoryItemID, ErrNotFound)
		}
	}
	for _, id := range removeIDs {
		m.removeEntry(id)
	}
	for _, e := range upserts {
		if _, ok := m.shopping[e.ID]; !ok {
			m.order = append(m.order, e.ID)
		}
		m.shopping[e.ID] = e
	}
	return nil
}

func (m *Memory) removeEntry(id string) {
	if _, ok := m.shopping[id]; !ok {
		return
	}
	delete(m.shopping, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *Memory) Close() error { return nil }
