package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/theirongolddev/restock/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// SQL is a database/sql backed Store for sqlite and MySQL. Both dialects
// share queries; only the schema differs.
type SQL struct {
	db      *sql.DB
	dialect string
}

// OpenSQLite opens or creates the database file at dbPath.
func OpenSQLite(dbPath string) (*SQL, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite: empty database path")
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// a single writer connection keeps transactions from tripping over SQLITE_BUSY
	db.SetMaxOpenConns(1)

	return newSQL(db, "sqlite", sqliteSchema)
}

// OpenMySQL connects to a MySQL server. The DSN uses go-sql-driver syntax.
func OpenMySQL(dsn string) (*SQL, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing mysql dsn: %w", err)
	}
	// revision checks count matched rows, not changed rows
	cfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to mysql: %w", err)
	}
	return newSQL(db, "mysql", mysqlSchema)
}

func newSQL(db *sql.DB, dialect string, schema []string) (*SQL, error) {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}
	return &SQL{db: db, dialect: dialect}, nil
}

// Dialect returns "sqlite" or "mysql".
func (s *SQL) Dialect() string { return s.dialect }

// Close closes the database.
func (s *SQL) Close() error {
	return s.db.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const itemColumns = `id, name, category, location, quantity, unit, unit_step, burn_rate,
	reorder_threshold, auto_reorder, typical_quantity, last_updated, created_at, revision`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (model.InventoryItem, error) {
	var it model.InventoryItem
	var rate, threshold sql.NullFloat64
	var auto int
	var lastUpdated, createdAt string
	err := row.Scan(&it.ID, &it.Name, &it.Category, &it.Location, &it.Quantity, &it.Unit, &it.UnitStep,
		&rate, &threshold, &auto, &it.TypicalQuantity, &lastUpdated, &createdAt, &it.Revision)
	if err != nil {
		return it, err
	}
	if rate.Valid {
		it.BurnRate = model.KnownRate(rate.Float64)
	}
	if threshold.Valid {
		v := threshold.Float64
		it.ReorderThreshold = &v
	}
	it.AutoReorder = auto == 1
	it.LastUpdated = parseTime(lastUpdated)
	it.CreatedAt = parseTime(createdAt)
	return it, nil
}

func nullRate(r model.BurnRate) sql.NullFloat64 {
	return sql.NullFloat64{Float64: r.Value, Valid: r.Known}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Items returns every item in creation order.
func (s *SQL) Items(ctx context.Context) ([]model.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM items ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.InventoryItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Item returns one item.
func (s *SQL) Item(ctx context.Context, id string) (model.InventoryItem, error) {
	return getItem(ctx, s.db, id)
}

func getItem(ctx context.Context, q querier, id string) (model.InventoryItem, error) {
	it, err := scanItem(q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return it, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return it, err
}

// Apply writes the batch in one transaction.
func (s *SQL) Apply(ctx context.Context, b Batch) error {
	if err := validateBatch(b); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if b.Receipt != nil {
		if err := markProcessed(ctx, tx, *b.Receipt); err != nil {
			return err
		}
	}

	for _, it := range b.Create {
		_, err := tx.ExecContext(ctx, `INSERT INTO items (`+itemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			it.ID, it.Name, it.Category, it.Location, it.Quantity, it.Unit, it.Step(), nullRate(it.BurnRate),
			nullFloat(it.ReorderThreshold), boolInt(it.AutoReorder), it.TypicalQuantity,
			formatTime(it.LastUpdated), formatTime(it.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting item %s: %w", it.ID, err)
		}
	}

	for _, it := range b.Update {
		res, err := tx.ExecContext(ctx, `UPDATE items SET
			name = ?, category = ?, location = ?, quantity = ?, unit = ?, unit_step = ?, burn_rate = ?,
			reorder_threshold = ?, auto_reorder = ?, typical_quantity = ?, last_updated = ?,
			revision = revision + 1
			WHERE id = ? AND revision = ?`,
			it.Name, it.Category, it.Location, it.Quantity, it.Unit, it.Step(), nullRate(it.BurnRate),
			nullFloat(it.ReorderThreshold), boolInt(it.AutoReorder), it.TypicalQuantity, formatTime(it.LastUpdated),
			it.ID, it.Revision,
		)
		if err != nil {
			return fmt.Errorf("updating item %s: %w", it.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			if _, err := getItem(ctx, tx, it.ID); err != nil {
				return err
			}
			return fmt.Errorf("item %s expected revision %d: %w", it.ID, it.Revision, ErrConflict)
		}
	}

	for _, o := range b.Observations {
		_, err := tx.ExecContext(ctx, `INSERT INTO observations (item_id, quantity_after, ts, kind)
			VALUES (?, ?, ?, ?)`, o.ItemID, o.QuantityAfter, formatTime(o.Timestamp), string(o.Kind))
		if err != nil {
			return fmt.Errorf("appending observation for %s: %w", o.ItemID, err)
		}
	}

	return tx.Commit()
}

// markProcessed flips processed from 0 to 1 and rewrites the lines with their matches.
func markProcessed(ctx context.Context, tx *sql.Tx, r model.Receipt) error {
	processedAt := r.ProcessedAt
	if processedAt == nil {
		now := time.Now()
		processedAt = &now
	}
	res, err := tx.ExecContext(ctx, `UPDATE receipts SET processed = 1, processed_at = ?
		WHERE id = ? AND processed = 0`, nullTime(processedAt), r.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var processed int
		err := tx.QueryRowContext(ctx, "SELECT processed FROM receipts WHERE id = ?", r.ID).Scan(&processed)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			r.Processed = true
			r.ProcessedAt = processedAt
			return insertReceipt(ctx, tx, r)
		case err != nil:
			return err
		default:
			return fmt.Errorf("receipt %s: %w", r.ID, ErrReceiptProcessed)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM receipt_items WHERE receipt_id = ?", r.ID); err != nil {
		return err
	}
	return insertReceiptLines(ctx, tx, r)
}

// DeleteItem removes an item and everything that references it.
func (s *SQL) DeleteItem(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM shopping_items WHERE item_id = ?", id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM observations WHERE item_id = ?", id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

// History returns the latest limit observations for an item, oldest first.
func (s *SQL) History(ctx context.Context, itemID string, limit int) ([]model.ConsumptionObservation, error) {
	if limit <= 0 {
		limit = 1 << 30
	}
	rows, err := s.db.QueryContext(ctx, `SELECT item_id, quantity_after, ts, kind FROM observations
		WHERE item_id = ? ORDER BY ts DESC, seq DESC LIMIT ?`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.ConsumptionObservation
	for rows.Next() {
		var o model.ConsumptionObservation
		var ts, kind string
		if err := rows.Scan(&o.ItemID, &o.QuantityAfter, &ts, &kind); err != nil {
			return nil, err
		}
		o.Timestamp = parseTime(ts)
		o.Kind = model.ObservationKind(kind)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SaveReceipt stores a new receipt with its lines.
func (s *SQL) SaveReceipt(ctx context.Context, r model.Receipt) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertReceipt(ctx, tx, r); err != nil {
		return err
	}
	return tx.Commit()
}

func insertReceipt(ctx context.Context, tx *sql.Tx, r model.Receipt) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO receipts (id, source, processed, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?)`, r.ID, string(r.Source), boolInt(r.Processed), formatTime(r.CreatedAt), nullTime(r.ProcessedAt))
	if err != nil {
		return fmt.Errorf("inserting receipt %s: %w", r.ID, err)
	}
	return insertReceiptLines(ctx, tx, r)
}

func insertReceiptLines(ctx context.Context, tx *sql.Tx, r model.Receipt) error {
	for i, line := range r.Items {
		var price sql.NullString
		if line.Price != nil {
			price = sql.NullString{String: line.Price.String(), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO receipt_items
			(receipt_id, line, name, quantity, unit, price, category, matched_item_id, match_strategy)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, i, line.Name, line.Quantity, line.Unit, price, line.Category,
			line.MatchedInventoryID, line.MatchStrategy,
		)
		if err != nil {
			return fmt.Errorf("inserting receipt line %d: %w", i, err)
		}
	}
	return nil
}

// Receipt returns one receipt with its lines.
func (s *SQL) Receipt(ctx context.Context, id string) (model.Receipt, error) {
	var r model.Receipt
	var source, createdAt string
	var processed int
	var processedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, source, processed, created_at, processed_at
		FROM receipts WHERE id = ?`, id).Scan(&r.ID, &source, &processed, &createdAt, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("receipt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return r, err
	}
	r.Source = model.ReceiptSource(source)
	r.Processed = processed == 1
	r.CreatedAt = parseTime(createdAt)
	if processedAt.Valid {
		t := parseTime(processedAt.String)
		r.ProcessedAt = &t
	}
	r.Items, err = s.receiptLines(ctx, id)
	return r, err
}

func (s *SQL) receiptLines(ctx context.Context, receiptID string) ([]model.ReceiptItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, quantity, unit, price, category, matched_item_id, match_strategy
		FROM receipt_items WHERE receipt_id = ? ORDER BY line`, receiptID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.ReceiptItem
	for rows.Next() {
		var line model.ReceiptItem
		var unit, price, category, matched, strategy sql.NullString
		if err := rows.Scan(&line.Name, &line.Quantity, &unit, &price, &category, &matched, &strategy); err != nil {
			return nil, err
		}
		line.Unit = unit.String
		line.Category = category.String
		line.MatchedInventoryID = matched.String
		line.MatchStrategy = strategy.String
		if price.Valid && price.String != "" {
			d, err := decimal.NewFromString(price.String)
			if err != nil {
				return nil, fmt.Errorf("receipt %s price %q: %w", receiptID, price.String, err)
			}
			line.Price = &d
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// Receipts returns the newest receipts first.
func (s *SQL) Receipts(ctx context.Context, limit int) ([]model.Receipt, error) {
	if limit <= 0 {
		limit = 1 << 30
	}
	return s.receiptsWhere(ctx, "SELECT id FROM receipts ORDER BY created_at DESC LIMIT ?", limit)
}

// ReceiptsSince returns receipts created at or after since, newest first.
func (s *SQL) ReceiptsSince(ctx context.Context, since time.Time) ([]model.Receipt, error) {
	return s.receiptsWhere(ctx, "SELECT id FROM receipts WHERE created_at >= ? ORDER BY created_at DESC", formatTime(since))
}

func (s *SQL) receiptsWhere(ctx context.Context, query string, args ...any) ([]model.Receipt, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Receipt, 0, len(ids))
	for _, id := range ids {
		r, err := s.Receipt(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ShoppingList returns every entry in insertion order.
func (s *SQL) ShoppingList(ctx context.Context) ([]model.ShoppingListItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, item_id, name, unit, suggested_quantity, priority,
		purchased, created_at, updated_at, purchased_at
		FROM shopping_items ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.ShoppingListItem
	for rows.Next() {
		var e model.ShoppingListItem
		var priority, createdAt, updatedAt string
		var purchased int
		var purchasedAt sql.NullString
		if err := rows.Scan(&e.ID, &e.InventoryItemID, &e.Name, &e.Unit, &e.SuggestedQuantity, &priority,
			&purchased, &createdAt, &updatedAt, &purchasedAt); err != nil {
			return nil, err
		}
		e.Priority = model.Priority(priority)
		e.Purchased = purchased == 1
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(updatedAt)
		if purchasedAt.Valid {
			t := parseTime(purchasedAt.String)
			e.PurchasedAt = &t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ApplyShopping removes and upserts entries in one transaction.
func (s *SQL) ApplyShopping(ctx context.Context, upserts []model.ShoppingListItem, removeIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range removeIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM shopping_items WHERE id = ?", id); err != nil {
			return err
		}
	}

	for _, e := range upserts {
		res, err := tx.ExecContext(ctx, `UPDATE shopping_items SET
			item_id = ?, name = ?, unit = ?, suggested_quantity = ?, priority = ?,
			purchased = ?, updated_at = ?, purchased_at = ?
			WHERE id = ?`,
			e.InventoryItemID, e.Name, e.Unit, e.SuggestedQuantity, string(e.Priority),
			boolInt(e.Purchased), formatTime(e.UpdatedAt), nullTime(e.PurchasedAt), e.ID,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n > 0 {
			continue
		}

		var pos int64
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), 0) + 1 FROM shopping_items").Scan(&pos); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO shopping_items
			(id, item_id, name, unit, suggested_quantity, priority, purchased, created_at, updated_at, purchased_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.InventoryItemID, e.Name, e.Unit, e.SuggestedQuantity, string(e.Priority),
			boolInt(e.Purchased), formatTime(e.CreatedAt), formatTime(e.UpdatedAt), nullTime(e.PurchasedAt), pos,
		)
		if err != nil {
			return fmt.Errorf("inserting shopping entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}
