// Package replenish keeps the shopping list in step with projected stock.
package replenish

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/restock/internal/forecast"
	"github.com/theirongolddev/restock/internal/model"
)

// ChangeKind describes what happened to a shopping-list entry.
type ChangeKind string

const (
	Created ChangeKind = "created"
	Updated ChangeKind = "updated"
	Removed ChangeKind = "removed"
)

// Change is one shopping-list mutation the store must apply.
type Change struct {
	Kind  ChangeKind             `json:"kind"`
	Entry model.ShoppingListItem `json:"entry"`
}

// Planner derives shopping-list entries from item projections.
type Planner struct {
	Projector        forecast.Projector
	HighPriorityDays float64
	LookaheadDays    float64
	NewID            func() string
}

// NewPlanner returns a planner that issues uuid entry ids.
func NewPlanner(p forecast.Projector, highPriorityDays, lookaheadDays float64) Planner {
	return Planner{
		Projector:        p,
		HighPriorityDays: highPriorityDays,
		LookaheadDays:    lookaheadDays,
		NewID:            uuid.NewString,
	}
}

// SuggestQuantity returns how much to buy to cover the lookahead window,
// rounded up to the item's unit step and never less than one step. Without a
// positive rate it falls back to the last known non-zero quantity.
func (p Planner) SuggestQuantity(it model.InventoryItem) float64 {
	step := it.Step()
	need := it.TypicalQuantity
	if it.BurnRate.Positive() {
		need = it.BurnRate.Value*p.LookaheadDays - it.Quantity
	}
	if need < step {
		need = step
	}
	return math.Ceil(need/step-1e-9) * step
}

// PriorityFor maps a low or critical projection onto a priority.
func (p Planner) PriorityFor(proj forecast.Projection) model.Priority {
	switch {
	case proj.Status == model.StatusCritical:
		return model.PriorityCritical
	case proj.DaysRemaining <= p.HighPriorityDays:
		return model.PriorityHigh
	default:
		return model.PriorityMedium
	}
}

// Plan compares items with the current entries and returns the changes that
// bring the list up to date. With a nil scope every item is planned and
// entries pointing at missing items are removed; otherwise only the scoped
// item ids are considered and scoped ids absent from items are treated as
// deleted. Planning an unchanged inventory yields no changes.
func (p Planner) Plan(items []model.InventoryItem, entries []model.ShoppingListItem, scope []string, now time.Time) []Change {
	active := make(map[string][]model.ShoppingListItem)
	lastPurchase := make(map[string]time.Time)
	for _, e := range entries {
		if e.Active() {
			active[e.InventoryItemID] = append(active[e.InventoryItemID], e)
			continue
		}
		if e.PurchasedAt != nil && e.PurchasedAt.After(lastPurchase[e.InventoryItemID]) {
			lastPurchase[e.InventoryItemID] = *e.PurchasedAt
		}
	}

	byID := make(map[string]model.InventoryItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	var ids []string
	if scope == nil {
		for _, it := range items {
			ids = append(ids, it.ID)
		}
	} else {
		ids = dedupe(scope)
	}

	var changes []Change
	for _, id := range ids {
		current := active[id]
		it, ok := byID[id]
		if !ok {
			for _, e := range current {
				changes = append(changes, Change{Kind: Removed, Entry: e})
			}
			continue
		}
		// extra active entries can only come from older data; keep the first
		for _, e := range tail(current) {
			changes = append(changes, Change{Kind: Removed, Entry: e})
		}
		if c, ok := p.planItem(it, head(current), lastPurchase[id], now); ok {
			changes = append(changes, c)
		}
	}

	if scope == nil {
		for _, e := range entries {
			if _, ok := byID[e.InventoryItemID]; ok || !e.Active() {
				continue
			}
			changes = append(changes, Change{Kind: Removed, Entry: e})
		}
	}
	return changes
}

func (p Planner) planItem(it model.InventoryItem, current *model.ShoppingListItem, purchasedAt time.Time, now time.Time) (Change, bool) {
	proj := p.Projector.ProjectItem(it)
	if proj.Status == model.StatusGood {
		if current != nil {
			return Change{Kind: Removed, Entry: *current}, true
		}
		return Change{}, false
	}

	qty := p.SuggestQuantity(it)
	prio := p.PriorityFor(proj)

	if current == nil {
		// a purchase newer than the last quantity update is still on its way
		if !purchasedAt.IsZero() && purchasedAt.After(it.LastUpdated) {
			return Change{}, false
		}
		return Change{Kind: Created, Entry: model.ShoppingListItem{
			ID:                p.NewID(),
			InventoryItemID:   it.ID,
			Name:              it.Name,
			Unit:              it.Unit,
			SuggestedQuantity: qty,
			Priority:          prio,
			CreatedAt:         now,
			UpdatedAt:         now,
		}}, true
	}

	if current.SuggestedQuantity == qty && current.Priority == prio && current.Name == it.Name && current.Unit == it.Unit {
		return Change{}, false
	}
	next := *current
	next.SuggestedQuantity = qty
	next.Priority = prio
	next.Name = it.Name
	next.Unit = it.Unit
	next.UpdatedAt = now
	return Change{Kind: Updated, Entry: next}, true
}

func head(list []model.ShoppingListItem) *model.ShoppingListItem {
	if len(list) == 0 {
		return nil
	}
	e := list[0]
	return &e
}

func tail(list []model.ShoppingListItem) []model.ShoppingListItem {
	if len(list) < 2 {
		return nil
	}
	return list[1:]
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Apply returns entries with changes applied, preserving order and appending
// created entries at the end.
func Apply(entries []model.ShoppingListItem, changes []Change) []model.ShoppingListItem {
	removed := make(map[string]bool)
	updated := make(map[string]model.ShoppingListItem)
	var created []model.ShoppingListItem
	for _, c := range changes {
		switch c.Kind {
		case Removed:
			removed[c.Entry.ID] = true
		case Updated:
			updated[c.Entry.ID] = c.Entry
		case Created:
			created = append(created, c.Entry)
		}
	}
	out := make([]model.ShoppingListItem, 0, len(entries)+len(created))
	for _, e := range entries {
		if removed[e.ID] {
			continue
		}
		if u, ok := updated[e.ID]; ok {
			e = u
		}
		out = append(out, e)
	}
	return append(out, created...)
}
