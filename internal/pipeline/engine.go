// Package pipeline runs the inventory engine: receipts flow through the
// reconciler into inventory, affected items are re-estimated and
// re-projected, and the shopping list is re-planned for just those items.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/restock/internal/config"
	"github.com/theirongolddev/restock/internal/forecast"
	"github.com/theirongolddev/restock/internal/model"
	"github.com/theirongolddev/restock/internal/reconcile"
	"github.com/theirongolddev/restock/internal/replenish"
	"github.com/theirongolddev/restock/internal/store"
)

// Engine is safe for concurrent use. Writes to one item are serialized by a
// per-item lock and guarded by the store's revision check; shopping-list
// planning is serialized so an item never gets two active entries.
type Engine struct {
	store      store.Store
	cfg        config.EngineConfig
	estimator  forecast.Estimator
	projector  forecast.Projector
	reconciler *reconcile.Reconciler
	planner    replenish.Planner

	itemLocks    *keyedMutex
	receiptLocks *keyedMutex
	planMu       sync.Mutex

	listeners []Listener
	conflicts ConflictObserver
	now       func() time.Time
	newID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs replaces uuid generation for items, receipts and entries.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithListener registers a listener for committed changes.
func WithListener(l Listener) Option {
	return func(e *Engine) { e.listeners = append(e.listeners, l) }
}

// WithConflictObserver reports retried revision conflicts.
func WithConflictObserver(o ConflictObserver) Option {
	return func(e *Engine) { e.conflicts = o }
}

// New builds an engine over s.
func New(s store.Store, cfg config.EngineConfig, opts ...Option) *Engine {
	if cfg == (config.EngineConfig{}) {
		cfg = config.DefaultEngine()
	}
	e := &Engine{
		store:        s,
		cfg:          cfg,
		itemLocks:    newKeyedMutex(),
		receiptLocks: newKeyedMutex(),
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.estimator = forecast.NewEstimator(cfg.EWMAWindow, cfg.EWMADecay)
	e.projector = forecast.Projector{
		CriticalDays:       cfg.CriticalDays,
		LowDays:            cfg.LowDays,
		DefaultReorderDays: cfg.DefaultReorderDays,
	}
	e.reconciler = reconcile.NewReconciler(cfg.FuzzyThreshold, cfg.DefaultCategory, cfg.DefaultLocation)
	e.reconciler.NewID = e.newID
	e.planner = replenish.NewPlanner(e.projector, cfg.HighPriorityDays, cfg.LookaheadDays)
	e.planner.NewID = e.newID
	return e
}

// AddListener registers l after construction.
func (e *Engine) AddListener(l Listener) {
	e.listeners = append(e.listeners, l)
}

// Projector returns the projector used for item views.
func (e *Engine) Projector() forecast.Projector { return e.projector }

// Config returns the engine constants.
func (e *Engine) Config() config.EngineConfig { return e.cfg }

func (e *Engine) emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = e.now()
	}
	for _, l := range e.listeners {
		if err := l.HandleEvent(ctx, ev); err != nil {
			log.Printf("restock: listener for %s: %v", ev.Kind, err)
		}
	}
}

// retry runs fn until it stops failing with a revision conflict, at most
// 1+ConflictRetries times.
func (e *Engine) retry(ctx context.Context, op string, fn func() error) error {
	attempts := e.cfg.ConflictRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = fn()
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		if attempt < attempts {
			if e.conflicts != nil {
				e.conflicts.ConflictRetried(op)
			}
			log.Printf("restock: %s: %v (retry %d/%d)", op, err, attempt, e.cfg.ConflictRetries)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrConcurrencyConflict, err)
}

func (e *Engine) history(ctx context.Context, id string, pending ...model.ConsumptionObservation) ([]model.ConsumptionObservation, error) {
	h, err := e.store.History(ctx, id, e.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", id, err)
	}
	for _, o := range pending {
		if o.ItemID == id {
			h = append(h, o)
		}
	}
	return h, nil
}

// Items returns every item with its projection.
func (e *Engine) Items(ctx context.Context) ([]model.ItemView, error) {
	items, err := e.store.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	views := make([]model.ItemView, 0, len(items))
	for _, it := range items {
		views = append(views, e.projector.View(it))
	}
	return views, nil
}

// Item returns one item with its projection.
func (e *Engine) Item(ctx context.Context, id string) (model.ItemView, error) {
	it, err := e.store.Item(ctx, id)
	if err != nil {
		return model.ItemView{}, err
	}
	return e.projector.View(it), nil
}

// FindItem resolves an id or a case-insensitive name. Ambiguous names fail validation.
func (e *Engine) FindItem(ctx context.Context, ref string) (model.ItemView, error) {
	if v, err := e.Item(ctx, ref); err == nil {
		return v, nil
	} else if !errors.Is(err, ErrNotFound) {
		return model.ItemView{}, err
	}
	views, err := e.Items(ctx)
	if err != nil {
		return model.ItemView{}, err
	}
	var found []model.ItemView
	for _, v := range views {
		if strings.EqualFold(v.Name, strings.TrimSpace(ref)) || strings.HasPrefix(v.ID, ref) {
			found = append(found, v)
		}
	}
	switch len(found) {
	case 0:
		return model.ItemView{}, fmt.Errorf("item %q: %w", ref, ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return model.ItemView{}, invalid("item", fmt.Sprintf("%q matches %d items", ref, len(found)))
	}
}

// History returns an item's recent observations, oldest first.
func (e *Engine) History(ctx context.Context, id string) ([]model.ConsumptionObservation, error) {
	if _, err := e.store.Item(ctx, id); err != nil {
		return nil, err
	}
	return e.history(ctx, id)
}

// Receipt returns one receipt.
func (e *Engine) Receipt(ctx context.Context, id string) (model.Receipt, error) {
	return e.store.Receipt(ctx, id)
}

// Receipts returns the newest receipts first.
func (e *Engine) Receipts(ctx context.Context, limit int) ([]model.Receipt, error) {
	return e.store.Receipts(ctx, limit)
}

// ShoppingList returns entries ordered by priority then age. Purchased
// entries are included only when asked for.
func (e *Engine) ShoppingList(ctx context.Context, includePurchased bool) ([]model.ShoppingListItem, error) {
	entries, err := e.store.ShoppingList(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading shopping list: %w", err)
	}
	out := entries[:0]
	for _, en := range entries {
		if en.Active() || includePurchased {
			out = append(out, en)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Purchased != out[j].Purchased {
			return !out[i].Purchased
		}
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Summary computes a fresh household report.
func (e *Engine) Summary(ctx context.Context) (model.Summary, error) {
	views, err := e.Items(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	entries, err := e.store.ShoppingList(ctx)
	if err != nil {
		return model.Summary{}, fmt.Errorf("loading shopping list: %w", err)
	}
	now := e.now()
	receipts, err := e.store.ReceiptsSince(ctx, now.Add(-spendWindow))
	if err != nil {
		return model.Summary{}, fmt.Errorf("loading receipts: %w", err)
	}
	return Summarize(views, entries, receipts, now, e.cfg.LookaheadDays), nil
}

// ReconcileReport is the outcome of one reconciled receipt.
type ReconcileReport struct {
	Receipt  model.Receipt      `json:"receipt"`
	Matched  []model.ItemView   `json:"matched"`
	Created  []model.ItemView   `json:"created"`
	Shopping []replenish.Change `json:"shopping"`
}

// SubmitReceipt stores a parsed receipt and reconciles it.
func (e *Engine) SubmitReceipt(ctx context.Context, sub ReceiptSubmission) (ReconcileReport, error) {
	if err := sub.validate(); err != nil {
		return ReconcileReport{}, err
	}
	r := model.Receipt{
		ID:        e.newID(),
		Source:    sub.Source,
		CreatedAt: e.now(),
	}
	for _, line := range sub.Items {
		r.Items = append(r.Items, model.ReceiptItem{
			Name:     strings.TrimSpace(line.Name),
			Quantity: line.Quantity,
			Unit:     strings.TrimSpace(line.Unit),
			Price:    line.Price,
			Category: strings.TrimSpace(line.Category),
		})
	}
	if err := e.store.SaveReceipt(ctx, r); err != nil {
		return ReconcileReport{}, fmt.Errorf("saving receipt: %w", err)
	}
	return e.ReconcileReceipt(ctx, r.ID)
}

// ReconcileReceipt applies a stored receipt to inventory exactly once. All
// inventory changes and the processed flag commit together or not at all.
func (e *Engine) ReconcileReceipt(ctx context.Context, receiptID string) (ReconcileReport, error) {
	unlock := e.receiptLocks.Lock(receiptID)
	defer unlock()

	var res reconcile.Result
	err := e.retry(ctx, "reconcile receipt", func() error {
		r, err := e.store.Receipt(ctx, receiptID)
		if err != nil {
			return err
		}
		inventory, err := e.store.Items(ctx)
		if err != nil {
			return fmt.Errorf("loading inventory: %w", err)
		}
		res, err = e.reconciler.Reconcile(r, inventory, e.now())
		if err != nil {
			if errors.Is(err, reconcile.ErrInvalidLine) {
				return invalid("items", err.Error())
			}
			return err
		}

		unlockItems := e.itemLocks.Lock(res.Touched()...)
		defer unlockItems()

		for i := range res.Updated {
			h, err := e.history(ctx, res.Updated[i].ID, res.Observations...)
			if err != nil {
				return err
			}
			res.Updated[i].BurnRate = e.estimator.Estimate(h)
		}
		for i := range res.Created {
			var h []model.ConsumptionObservation
			for _, o := range res.Observations {
				if o.ItemID == res.Created[i].ID {
					h = append(h, o)
				}
			}
			res.Created[i].BurnRate = e.estimator.Estimate(h)
		}

		err = e.store.Apply(ctx, store.Batch{
			Create:       res.Created,
			Update:       res.Updated,
			Observations: res.Observations,
			Receipt:      &res.Receipt,
		})
		if errors.Is(err, store.ErrNotFound) {
			// A matched item was deleted after the inventory read; the next
			// pass treats its lines as new.
			return fmt.Errorf("%v: %w", err, store.ErrConflict)
		}
		return err
	})
	if errors.Is(err, store.ErrReceiptProcessed) {
		return ReconcileReport{}, fmt.Errorf("receipt %s: %w", receiptID, ErrReceiptAlreadyProcessed)
	}
	if err != nil {
		return ReconcileReport{}, err
	}

	report := ReconcileReport{Receipt: res.Receipt}
	for _, it := range res.Updated {
		report.Matched = append(report.Matched, e.freshView(ctx, it))
	}
	for _, it := range res.Created {
		report.Created = append(report.Created, e.freshView(ctx, it))
	}

	receipt := res.Receipt
	e.emit(ctx, Event{
		Kind:    EventReceiptReconciled,
		Receipt: &receipt,
		Items:   append(append([]model.ItemView(nil), report.Matched...), report.Created...),
	})

	report.Shopping, err = e.plan(ctx, res.Touched())
	if err != nil {
		return report, fmt.Errorf("planning after receipt %s: %w", receiptID, err)
	}
	return report, nil
}

// freshView re-reads an item so the view carries the committed revision.
func (e *Engine) freshView(ctx context.Context, it model.InventoryItem) model.ItemView {
	if cur, err := e.store.Item(ctx, it.ID); err == nil {
		return e.projector.View(cur)
	}
	return e.projector.View(it)
}

// AddItem creates an item by hand with an initial observation.
func (e *Engine) AddItem(ctx context.Context, req NewItem) (model.ItemView, error) {
	if err := check(req); err != nil {
		return model.ItemView{}, err
	}
	if err := validQuantity("Quantity", req.Quantity); err != nil {
		return model.ItemView{}, err
	}
	now := e.now()
	it := model.InventoryItem{
		ID:               e.newID(),
		Name:             strings.TrimSpace(req.Name),
		Category:         orDefault(req.Category, e.cfg.DefaultCategory),
		Location:         orDefault(req.Location, e.cfg.DefaultLocation),
		Unit:             orDefault(req.Unit, "unit"),
		UnitStep:         req.UnitStep,
		BurnRate:         model.UnknownRate(),
		ReorderThreshold: req.ReorderThreshold,
		AutoReorder:      req.AutoReorder,
		CreatedAt:        now,
	}
	if it.UnitStep == 0 {
		it.UnitStep = 1
	}
	it.SetQuantity(req.Quantity, now)

	obs := model.ConsumptionObservation{ItemID: it.ID, QuantityAfter: it.Quantity, Timestamp: now, Kind: model.ObservationInitial}
	if err := e.store.Apply(ctx, store.Batch{Create: []model.InventoryItem{it}, Observations: []model.ConsumptionObservation{obs}}); err != nil {
		return model.ItemView{}, fmt.Errorf("adding item: %w", err)
	}
	view := e.freshView(ctx, it)
	e.emit(ctx, Event{Kind: EventItemAdded, ItemID: it.ID, Items: []model.ItemView{view}})
	if _, err := e.plan(ctx, []string{it.ID}); err != nil {
		return view, err
	}
	return view, nil
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

// RecordQuantity records a manual stock count for an item.
func (e *Engine) RecordQuantity(ctx context.Context, id string, quantity float64) (model.ItemView, error) {
	if err := validQuantity("quantity", quantity); err != nil {
		return model.ItemView{}, err
	}
	return e.mutate(ctx, "record quantity", id, func(it *model.InventoryItem, now time.Time) (*model.ConsumptionObservation, error) {
		it.SetQuantity(quantity, now)
		return &model.ConsumptionObservation{ItemID: it.ID, QuantityAfter: quantity, Timestamp: now, Kind: model.ObservationManual}, nil
	})
}

// Consume subtracts amount from an item, stopping at zero.
func (e *Engine) Consume(ctx context.Context, id string, amount float64) (model.ItemView, error) {
	if err := validQuantity("amount", amount); err != nil {
		return model.ItemView{}, err
	}
	if amount == 0 {
		return model.ItemView{}, invalid("amount", "gt=0")
	}
	return e.mutate(ctx, "consume", id, func(it *model.InventoryItem, now time.Time) (*model.ConsumptionObservation, error) {
		q := it.Quantity - amount
		if q < 0 {
			q = 0
		}
		it.SetQuantity(q, now)
		return &model.ConsumptionObservation{ItemID: it.ID, QuantityAfter: q, Timestamp: now, Kind: model.ObservationConsume}, nil
	})
}

// UpdateItemSettings changes descriptive fields and thresholds without
// touching quantity or history.
func (e *Engine) UpdateItemSettings(ctx context.Context, id string, s ItemSettings) (model.ItemView, error) {
	if err := check(s); err != nil {
		return model.ItemView{}, err
	}
	return e.mutate(ctx, "update item", id, func(it *model.InventoryItem, _ time.Time) (*model.ConsumptionObservation, error) {
		s.apply(it)
		return nil, nil
	})
}

// mutate runs a read-modify-write on one item under its lock, retrying on
// revision conflicts, then re-plans that item.
func (e *Engine) mutate(ctx context.Context, op, id string, fn func(*model.InventoryItem, time.Time) (*model.ConsumptionObservation, error)) (model.ItemView, error) {
	unlock := e.itemLocks.Lock(id)
	var updated model.InventoryItem
	err := e.retry(ctx, op, func() error {
		it, err := e.store.Item(ctx, id)
		if err != nil {
			return err
		}
		now := e.now()
		obs, err := fn(&it, now)
		if err != nil {
			return err
		}
		b := store.Batch{Update: []model.InventoryItem{it}}
		if obs != nil {
			h, err := e.history(ctx, id, *obs)
			if err != nil {
				return err
			}
			it.BurnRate = e.estimator.Estimate(h)
			b.Update[0] = it
			b.Observations = []model.ConsumptionObservation{*obs}
		}
		if err := e.store.Apply(ctx, b); err != nil {
			return err
		}
		updated = it
		updated.Revision++
		return nil
	})
	unlock()
	if err != nil {
		return model.ItemView{}, err
	}

	view := e.projector.View(updated)
	e.emit(ctx, Event{Kind: EventItemChanged, ItemID: id, Items: []model.ItemView{view}})
	if _, err := e.plan(ctx, []string{id}); err != nil {
		return view, err
	}
	return view, nil
}

// DeleteItem removes an item, its history and its shopping-list entries.
func (e *Engine) DeleteItem(ctx context.Context, id string) error {
	unlock := e.itemLocks.Lock(id)
	defer unlock()
	e.planMu.Lock()
	defer e.planMu.Unlock()

	entries, err := e.store.ShoppingList(ctx)
	if err != nil {
		return fmt.Errorf("loading shopping list: %w", err)
	}
	if err := e.store.DeleteItem(ctx, id); err != nil {
		return err
	}

	var removed []replenish.Change
	for _, en := range entries {
		if en.InventoryItemID == id {
			removed = append(removed, replenish.Change{Kind: replenish.Removed, Entry: en})
		}
	}
	e.emit(ctx, Event{Kind: EventItemDeleted, ItemID: id})
	if len(removed) > 0 {
		e.emit(ctx, Event{Kind: EventShoppingChanged, Shopping: removed})
	}
	return nil
}

// RefreshShoppingList re-plans every item. Running it twice without an
// intervening change leaves the list untouched and returns no changes.
func (e *Engine) RefreshShoppingList(ctx context.Context) ([]replenish.Change, error) {
	return e.plan(ctx, nil)
}

// plan brings the shopping list up to date for scope, or for everything when scope is nil.
func (e *Engine) plan(ctx context.Context, scope []string) ([]replenish.Change, error) {
	e.planMu.Lock()
	defer e.planMu.Unlock()

	var items []model.InventoryItem
	if scope == nil {
		var err error
		if items, err = e.store.Items(ctx); err != nil {
			return nil, fmt.Errorf("listing items: %w", err)
		}
	} else {
		for _, id := range scope {
			it, err := e.store.Item(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			items = append(items, it)
		}
	}

	entries, err := e.store.ShoppingList(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading shopping list: %w", err)
	}

	changes := e.planner.Plan(items, entries, scope, e.now())
	if len(changes) == 0 {
		return nil, nil
	}

	var upserts []model.ShoppingListItem
	var removals []string
	for _, c := range changes {
		if c.Kind == replenish.Removed {
			removals = append(removals, c.Entry.ID)
		} else {
			upserts = append(upserts, c.Entry)
		}
	}
	if err := e.store.ApplyShopping(ctx, upserts, removals); err != nil {
		return nil, fmt.Errorf("saving shopping list: %w", err)
	}
	e.emit(ctx, Event{Kind: EventShoppingChanged, Shopping: changes})
	return changes, nil
}

// MarkPurchased closes a shopping-list entry. The item is not re-listed
// until its quantity is next updated.
func (e *Engine) MarkPurchased(ctx context.Context, entryID string) (model.ShoppingListItem, error) {
	e.planMu.Lock()
	defer e.planMu.Unlock()

	entries, err := e.store.ShoppingList(ctx)
	if err != nil {
		return model.ShoppingListItem{}, fmt.Errorf("loading shopping list: %w", err)
	}
	for _, en := range entries {
		if en.ID != entryID {
			continue
		}
		if en.Purchased {
			return en, nil
		}
		now := e.now()
		en.Purchased = true
		en.PurchasedAt = &now
		en.UpdatedAt = now
		if err := e.store.ApplyShopping(ctx, []model.ShoppingListItem{en}, nil); err != nil {
			return model.ShoppingListItem{}, fmt.Errorf("saving shopping list: %w", err)
		}
		e.emit(ctx, Event{Kind: EventShoppingChanged, Shopping: []replenish.Change{{Kind: replenish.Updated, Entry: en}}})
		return en, nil
	}
	return model.ShoppingListItem{}, fmt.Errorf("shopping entry %s: %w", entryID, ErrNotFound)
}
