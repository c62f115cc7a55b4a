// Package reconcile matches parsed receipt lines against existing inventory.
package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/restock/internal/model"
)

var (
	// ErrAlreadyProcessed is returned when a receipt has been reconciled before.
	ErrAlreadyProcessed = errors.New("receipt already processed")
	// ErrInvalidLine is returned for receipt lines that cannot be applied.
	ErrInvalidLine = errors.New("invalid receipt line")
)

// NewItemStrategy marks receipt lines that created a new inventory item.
const NewItemStrategy = "new"

// Reconciler applies receipts to a snapshot of inventory.
type Reconciler struct {
	Strategies      []Strategy
	FuzzyThreshold  float64
	DefaultCategory string
	DefaultLocation string
	NewID           func() string
}

// NewReconciler returns a reconciler using DefaultStrategies and uuid ids.
func NewReconciler(fuzzyThreshold float64, defaultCategory, defaultLocation string) *Reconciler {
	return &Reconciler{
		Strategies:      DefaultStrategies,
		FuzzyThreshold:  fuzzyThreshold,
		DefaultCategory: defaultCategory,
		DefaultLocation: defaultLocation,
		NewID:           uuid.NewString,
	}
}

// Match records how one receipt line was applied.
type Match struct {
	Line     int
	ItemID   string
	Strategy string
	Created  bool
}

// Result is everything a reconciliation changes. Nothing is persisted here;
// the caller commits the whole result atomically or not at all.
type Result struct {
	Receipt      model.Receipt
	Updated      []model.InventoryItem // existing items, Revision still the one read
	Created      []model.InventoryItem
	Observations []model.ConsumptionObservation
	Matches      []Match
}

// Touched returns the ids of every updated or created item.
func (r Result) Touched() []string {
	ids := make([]string, 0, len(r.Updated)+len(r.Created))
	for _, it := range r.Updated {
		ids = append(ids, it.ID)
	}
	for _, it := range r.Created {
		ids = append(ids, it.ID)
	}
	return ids
}

// Reconcile matches every line of receipt against inventory. Lines are
// applied in order and items created by earlier lines are candidates for
// later ones.
func (r *Reconciler) Reconcile(receipt model.Receipt, inventory []model.InventoryItem, now time.Time) (Result, error) {
	if receipt.Processed {
		return Result{}, fmt.Errorf("receipt %s: %w", receipt.ID, ErrAlreadyProcessed)
	}

	pool := make([]model.InventoryItem, len(inventory))
	copy(pool, inventory)
	index := make(map[string]int, len(pool))
	for i, it := range pool {
		index[it.ID] = i
	}
	existing := len(inventory)
	touched := make(map[string]bool)

	res := Result{Receipt: receipt}
	res.Receipt.Items = make([]model.ReceiptItem, len(receipt.Items))
	copy(res.Receipt.Items, receipt.Items)

	for i := range res.Receipt.Items {
		line := &res.Receipt.Items[i]
		if strings.TrimSpace(line.Name) == "" || line.Quantity <= 0 {
			return Result{}, fmt.Errorf("line %d (%q, qty %v): %w", i, line.Name, line.Quantity, ErrInvalidLine)
		}

		id, strategy, ok := r.match(*line, pool)
		if ok {
			it := &pool[index[id]]
			it.SetQuantity(it.Quantity+line.Quantity, now)
			touched[id] = true
			res.Observations = append(res.Observations, model.ConsumptionObservation{
				ItemID:        id,
				QuantityAfter: it.Quantity,
				Timestamp:     now,
				Kind:          model.ObservationRestock,
			})
			line.MatchedInventoryID = id
			line.MatchStrategy = strategy
			res.Matches = append(res.Matches, Match{Line: i, ItemID: id, Strategy: strategy})
			continue
		}

		it := r.newItem(*line, now)
		index[it.ID] = len(pool)
		pool = append(pool, it)
		res.Observations = append(res.Observations, model.ConsumptionObservation{
			ItemID:        it.ID,
			QuantityAfter: it.Quantity,
			Timestamp:     now,
			Kind:          model.ObservationInitial,
		})
		line.MatchedInventoryID = it.ID
		line.MatchStrategy = NewItemStrategy
		res.Matches = append(res.Matches, Match{Line: i, ItemID: it.ID, Strategy: NewItemStrategy, Created: true})
	}

	for i, it := range pool {
		switch {
		case i >= existing:
			res.Created = append(res.Created, it)
		case touched[it.ID]:
			res.Updated = append(res.Updated, it)
		}
	}

	res.Receipt.Processed = true
	processedAt := now
	res.Receipt.ProcessedAt = &processedAt
	return res, nil
}

// match walks the strategies in rank order and returns the first unique candidate.
func (r *Reconciler) match(line model.ReceiptItem, pool []model.InventoryItem) (string, string, bool) {
	for _, s := range r.Strategies {
		cands := s.Candidates(line, pool, r.FuzzyThreshold)
		if len(cands) == 1 {
			return cands[0].ID, s.String(), true
		}
	}
	return "", "", false
}

func (r *Reconciler) newItem(line model.ReceiptItem, now time.Time) model.InventoryItem {
	category := strings.TrimSpace(line.Category)
	if category == "" {
		category = r.DefaultCategory
	}
	unit := strings.TrimSpace(line.Unit)
	if unit == "" {
		unit = "unit"
	}
	it := model.InventoryItem{
		ID:        r.NewID(),
		Name:      strings.TrimSpace(line.Name),
		Category:  category,
		Location:  r.DefaultLocation,
		Unit:      unit,
		UnitStep:  1,
		BurnRate:  model.UnknownRate(),
		CreatedAt: now,
	}
	it.SetQuantity(line.Quantity, now)
	return it
}
