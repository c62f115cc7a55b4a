package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/theirongolddev/restock/internal/model"
)

type itemRecord struct {
	ID               string   `gorm:"type:varchar(64);primaryKey"`
	Name             string   `gorm:"not null"`
	Category         string   `gorm:"not null"`
	Location         string   `gorm:"not null"`
	Quantity         float64  `gorm:"not null"`
	Unit             string   `gorm:"not null"`
	UnitStep         float64  `gorm:"not null;default:1"`
	BurnRate         *float64
	ReorderThreshold *float64
	AutoReorder      bool `gorm:"not null;default:false"`
	TypicalQuantity  float64
	LastUpdated      time.Time
	CreatedAt        time.Time
	Revision         int64 `gorm:"not null"`
}

func (itemRecord) TableName() string { return "items" }

type observationRecord struct {
	Seq           int64     `gorm:"primaryKey;autoIncrement"`
	ItemID        string    `gorm:"type:varchar(64);not null;index:idx_observations_item,priority:1"`
	QuantityAfter float64   `gorm:"not null"`
	Timestamp     time.Time `gorm:"column:ts;not null;index:idx_observations_item,priority:2"`
	Kind          string    `gorm:"type:varchar(16);not null"`
}

func (observationRecord) TableName() string { return "observations" }

type receiptRecord struct {
	ID          string `gorm:"type:varchar(64);primaryKey"`
	Source      string `gorm:"type:varchar(16);not null"`
	Processed   bool   `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"index"`
	ProcessedAt *time.Time
	Lines       []receiptLineRecord `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE"`
}

func (receiptRecord) TableName() string { return "receipts" }

type receiptLineRecord struct {
	ReceiptID     string  `gorm:"type:varchar(64);primaryKey"`
	Line          int     `gorm:"primaryKey;autoIncrement:false"`
	Name          string  `gorm:"not null"`
	Quantity      float64 `gorm:"not null"`
	Unit          string
	Price         decimal.NullDecimal `gorm:"type:numeric(12,2)"`
	Category      string
	MatchedItemID string
	MatchStrategy string
}

func (receiptLineRecord) TableName() string { return "receipt_items" }

type shoppingRecord struct {
	ID                string `gorm:"type:varchar(64);primaryKey"`
	ItemID            string `gorm:"type:varchar(64);not null;index"`
	Name              string
	Unit              string
	SuggestedQuantity float64
	Priority          string `gorm:"type:varchar(16)"`
	Purchased         bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PurchasedAt       *time.Time
	Position          int64 `gorm:"not null"`
}

func (shoppingRecord) TableName() string { return "shopping_items" }

// Gorm is a Store on gorm, used with PostgreSQL.
type Gorm struct {
	db *gorm.DB
}

// OpenPostgres connects to PostgreSQL and migrates the schema.
func OpenPostgres(dsn string) (*Gorm, error) {
	if dsn == "" {
		return nil, errors.New("postgres: empty dsn")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return NewGorm(db)
}

// NewGorm wraps an open gorm handle and migrates the schema.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&itemRecord{}, &observationRecord{}, &receiptRecord{}, &receiptLineRecord{}, &shoppingRecord{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toItemRecord(it model.InventoryItem) itemRecord {
	return itemRecord{
		ID:               it.ID,
		Name:             it.Name,
		Category:         it.Category,
		Location:         it.Location,
		Quantity:         it.Quantity,
		Unit:             it.Unit,
		UnitStep:         it.Step(),
		BurnRate:         it.BurnRate.Ptr(),
		ReorderThreshold: it.ReorderThreshold,
		AutoReorder:      it.AutoReorder,
		TypicalQuantity:  it.TypicalQuantity,
		LastUpdated:      it.LastUpdated.UTC(),
		CreatedAt:        it.CreatedAt.UTC(),
		Revision:         it.Revision,
	}
}

func (r itemRecord) toModel() model.InventoryItem {
	it := model.InventoryItem{
		ID:               r.ID,
		Name:             r.Name,
		Category:         r.Category,
		Location:         r.Location,
		Quantity:         r.Quantity,
		Unit:             r.Unit,
		UnitStep:         r.UnitStep,
		ReorderThreshold: r.ReorderThreshold,
		AutoReorder:      r.AutoReorder,
		TypicalQuantity:  r.TypicalQuantity,
		LastUpdated:      r.LastUpdated,
		CreatedAt:        r.CreatedAt,
		Revision:         r.Revision,
	}
	if r.BurnRate != nil {
		it.BurnRate = model.KnownRate(*r.BurnRate)
	}
	return it
}

func (g *Gorm) Items(ctx context.Context) ([]model.InventoryItem, error) {
	var recs []itemRecord
	if err := g.db.WithContext(ctx).Order("created_at asc, id asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]model.InventoryItem, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (g *Gorm) Item(ctx context.Context, id string) (model.InventoryItem, error) {
	return gormItem(g.db.WithContext(ctx), id)
}

func gormItem(db *gorm.DB, id string) (model.InventoryItem, error) {
	var rec itemRecord
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.InventoryItem{}, fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		return model.InventoryItem{}, err
	}
	return rec.toModel(), nil
}

func (g *Gorm) Apply(ctx context.Context, b Batch) error {
	if err := validateBatch(b); err != nil {
		return err
	}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if b.Receipt != nil {
			if err := gormMarkProcessed(tx, *b.Receipt); err != nil {
				return err
			}
		}

		for _, it := range b.Create {
			rec := toItemRecord(it)
			rec.Revision = 1
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("inserting item %s: %w", it.ID, err)
			}
		}

		for _, it := range b.Update {
			rec := toItemRecord(it)
			res := tx.Model(&itemRecord{}).
				Where("id = ? AND revision = ?", it.ID, it.Revision).
				Updates(map[string]any{
					"name":              rec.Name,
					"category":          rec.Category,
					"location":          rec.Location,
					"quantity":          rec.Quantity,
					"unit":              rec.Unit,
					"unit_step":         rec.UnitStep,
					"burn_rate":         rec.BurnRate,
					"reorder_threshold": rec.ReorderThreshold,
					"auto_reorder":      rec.AutoReorder,
					"typical_quantity":  rec.TypicalQuantity,
					"last_updated":      rec.LastUpdated,
					"revision":          gorm.Expr("revision + 1"),
				})
			if res.Error != nil {
				return fmt.Errorf("updating item %s: %w", it.ID, res.Error)
			}
			if res.RowsAffected == 0 {
				if _, err := gormItem(tx, it.ID); err != nil {
					return err
				}
				return fmt.Errorf("item %s expected revision %d: %w", it.ID, it.Revision, ErrConflict)
			}
		}

		for _, o := range b.Observations {
			rec := observationRecord{
				ItemID:        o.ItemID,
				QuantityAfter: o.QuantityAfter,
				Timestamp:     o.Timestamp.UTC(),
				Kind:          string(o.Kind),
			}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("appending observation for %s: %w", o.ItemID, err)
			}
		}
		return nil
	})
}

func gormMarkProcessed(tx *gorm.DB, r model.Receipt) error {
	processedAt := time.Now().UTC()
	if r.ProcessedAt != nil {
		processedAt = r.ProcessedAt.UTC()
	}
	res := tx.Model(&receiptRecord{}).
		Where("id = ? AND processed = ?", r.ID, false).
		Updates(map[string]any{"processed": true, "processed_at": processedAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var existing receiptRecord
		err := tx.Where("id = ?", r.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			r.Processed = true
			r.ProcessedAt = &processedAt
			return tx.Create(toReceiptRecord(r)).Error
		case err != nil:
			return err
		default:
			return fmt.Errorf("receipt %s: %w", r.ID, ErrReceiptProcessed)
		}
	}
	if err := tx.Where("receipt_id = ?", r.ID).Delete(&receiptLineRecord{}).Error; err != nil {
		return err
	}
	lines := toReceiptRecord(r).Lines
	if len(lines) == 0 {
		return nil
	}
	return tx.Create(&lines).Error
}

func toReceiptRecord(r model.Receipt) *receiptRecord {
	rec := &receiptRecord{
		ID:          r.ID,
		Source:      string(r.Source),
		Processed:   r.Processed,
		CreatedAt:   r.CreatedAt.UTC(),
		ProcessedAt: r.ProcessedAt,
	}
	for i, line := range r.Items {
		lr := receiptLineRecord{
			ReceiptID:     r.ID,
			Line:          i,
			Name:          line.Name,
			Quantity:      line.Quantity,
			Unit:          line.Unit,
			Category:      line.Category,
			MatchedItemID: line.MatchedInventoryID,
			MatchStrategy: line.MatchStrategy,
		}
		if line.Price != nil {
			lr.Price = decimal.NewNullDecimal(*line.Price)
		}
		rec.Lines = append(rec.Lines, lr)
	}
	return rec
}

func (r receiptRecord) toModel() model.Receipt {
	out := model.Receipt{
		ID:          r.ID,
		Source:      model.ReceiptSource(r.Source),
		Processed:   r.Processed,
		CreatedAt:   r.CreatedAt,
		ProcessedAt: r.ProcessedAt,
	}
	for _, l := range r.Lines {
		line := model.ReceiptItem{
			Name:               l.Name,
			Quantity:           l.Quantity,
			Unit:               l.Unit,
			Category:           l.Category,
			MatchedInventoryID: l.MatchedItemID,
			MatchStrategy:      l.MatchStrategy,
		}
		if l.Price.Valid {
			p := l.Price.Decimal
			line.Price = &p
		}
		out.Items = append(out.Items, line)
	}
	return out
}

func (g *Gorm) DeleteItem(ctx context.Context, id string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", id).Delete(&shoppingRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("item_id = ?", id).Delete(&observationRecord{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&itemRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (g *Gorm) History(ctx context.Context, itemID string, limit int) ([]model.ConsumptionObservation, error) {
	q := g.db.WithContext(ctx).Where("item_id = ?", itemID).Order("ts desc, seq desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []observationRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]model.ConsumptionObservation, len(recs))
	for i, r := range recs {
		out[len(recs)-1-i] = model.ConsumptionObservation{
			ItemID:        r.ItemID,
			QuantityAfter: r.QuantityAfter,
			Timestamp:     r.Timestamp,
			Kind:          model.ObservationKind(r.Kind),
		}
	}
	return out, nil
}

func (g *Gorm) SaveReceipt(ctx context.Context, r model.Receipt) error {
	return g.db.WithContext(ctx).Create(toReceiptRecord(r)).Error
}

func (g *Gorm) Receipt(ctx context.Context, id string) (model.Receipt, error) {
	var rec receiptRecord
	err := g.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line asc") }).
		Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Receipt{}, fmt.Errorf("receipt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Receipt{}, err
	}
	return rec.toModel(), nil
}

func (g *Gorm) Receipts(ctx context.Context, limit int) ([]model.Receipt, error) {
	q := g.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line asc") }).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []receiptRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]model.Receipt, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (g *Gorm) ReceiptsSince(ctx context.Context, since time.Time) ([]model.Receipt, error) {
	var recs []receiptRecord
	err := g.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("line asc") }).
		Where("created_at >= ?", since).
		Order("created_at desc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.Receipt, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.toModel())
	}
	return out, nil
}

func (g *Gorm) ShoppingList(ctx context.Context) ([]model.ShoppingListItem, error) {
	var recs []shoppingRecord
	if err := g.db.WithContext(ctx).Order("position asc").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]model.ShoppingListItem, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.ShoppingListItem{
			ID:                r.ID,
			InventoryItemID:   r.ItemID,
			Name:              r.Name,
			Unit:              r.Unit,
			SuggestedQuantity: r.SuggestedQuantity,
			Priority:          model.Priority(r.Priority),
			Purchased:         r.Purchased,
			CreatedAt:         r.CreatedAt,
			UpdatedAt:         r.UpdatedAt,
			PurchasedAt:       r.PurchasedAt,
		})
	}
	return out, nil
}

func (g *Gorm) ApplyShopping(ctx context.Context, upserts []model.ShoppingListItem, removeIDs []string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(removeIDs) > 0 {
			if err := tx.Where("id IN ?", removeIDs).Delete(&shoppingRecord{}).Error; err != nil {
				return err
			}
		}
		for _, e := range upserts {
			res := tx.Model(&shoppingRecord{}).Where("id = ?", e.ID).Updates(map[string]any{
				"item_id":            e.InventoryItemID,
				"name":               e.Name,
				"unit":               e.Unit,
				"suggested_quantity": e.SuggestedQuantity,
				"priority":           string(e.Priority),
				"purchased":          e.Purchased,
				"updated_at":         e.UpdatedAt.UTC(),
				"purchased_at":       e.PurchasedAt,
			})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected > 0 {
				continue
			}
			var pos int64
			if err := tx.Model(&shoppingRecord{}).Select("COALESCE(MAX(position), 0) + 1").Scan(&pos).Error; err != nil {
				return err
			}
			rec := shoppingRecord{
				ID:                e.ID,
				ItemID:            e.InventoryItemID,
				Name:              e.Name,
				Unit:              e.Unit,
				SuggestedQuantity: e.SuggestedQuantity,
				Priority:          string(e.Priority),
				Purchased:         e.Purchased,
				CreatedAt:         e.CreatedAt.UTC(),
				UpdatedAt:         e.UpdatedAt.UTC(),
				PurchasedAt:       e.PurchasedAt,
				Position:          pos,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return fmt.Errorf("inserting shopping entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
}
