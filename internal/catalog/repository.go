package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("product not found")

// Repository is the storage surface for the product catalog.
type Repository interface {
	Get(ctx context.Context, id int64) (*Product, error)
	GetByWooID(ctx context.Context, wooProductID int64) (*Product, error)
	GetByName(ctx context.Context, name string) (*Product, error)
	// UpsertFromSource writes source-carried fields but preserves any
	// existing cost/retail price, since the external source does not know
	// internal costs.
	UpsertFromSource(ctx context.Context, p Product) (int64, error)
	// UpsertByName is the flat-file write path. The export carries no
	// external ids, so name is the join key, and the file is the authority
	// on costs.
	UpsertByName(ctx context.Context, p Product) (int64, error)
	// SetCosts overwrites cost and retail price, used by the CSV import
	// which is the authority on internal costs.
	SetCosts(ctx context.Context, id int64, cost, retailPrice float64) error
	CreatePlaceholder(ctx context.Context, wooProductID int64) (int64, error)
	List(ctx context.Context, limit, offset int) ([]Product, int, error)
	ExistingWooIDs(ctx context.Context) (map[int64]struct{}, error)
	UpsertPriceTier(ctx context.Context, tier PriceTier) error
	TierPrice(ctx context.Context, productID int64, qty int) (float64, bool, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db dbtx
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const productColumns = `id, woo_product_id, name, sku, cost, retail_price, stock, stock_status, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Product, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM products WHERE id = $1", productColumns), id)
	return scanProduct(row)
}

func (r *repository) GetByWooID(ctx context.Context, wooProductID int64) (*Product, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM products WHERE woo_product_id = $1", productColumns), wooProductID)
	return scanProduct(row)
}

func (r *repository) GetByName(ctx context.Context, name string) (*Product, error) {
	row := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM products WHERE name = $1 ORDER BY id LIMIT 1", productColumns), name)
	return scanProduct(row)
}

func (r *repository) UpsertByName(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		UPDATE products SET
			sku = CASE WHEN $2 = '' THEN sku ELSE $2 END,
			cost = $3,
			retail_price = $4,
			stock = $5,
			stock_status = $6,
			updated_at = now()
		WHERE name = $1
		RETURNING id`,
		p.Name, p.SKU, p.Cost, p.RetailPrice, p.Stock, string(p.StockStatus),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = r.db.QueryRow(ctx, `
			INSERT INTO products (name, sku, cost, retail_price, stock, stock_status)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id`,
			p.Name, p.SKU, p.Cost, p.RetailPrice, p.Stock, string(p.StockStatus),
		).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("catalog: upsert product by name %q: %w", p.Name, err)
	}
	return id, nil
}

func (r *repository) UpsertFromSource(ctx context.Context, p Product) (int64, error) {
	var wooID pgtype.Int8
	if p.WooProductID != nil {
		wooID = pgtype.Int8{Int64: *p.WooProductID, Valid: true}
	}
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO products (woo_product_id, name, sku, cost, retail_price, stock, stock_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (woo_product_id) DO UPDATE SET
			name = EXCLUDED.name,
			sku = CASE WHEN EXCLUDED.sku = '' THEN products.sku ELSE EXCLUDED.sku END,
			cost = CASE WHEN products.cost > 0 THEN products.cost ELSE EXCLUDED.cost END,
			retail_price = CASE WHEN products.retail_price > 0 THEN products.retail_price ELSE EXCLUDED.retail_price END,
			stock = EXCLUDED.stock,
			stock_status = EXCLUDED.stock_status,
			updated_at = now()
		RETURNING id`,
		wooID, p.Name, p.SKU, p.Cost, p.RetailPrice, p.Stock, string(p.StockStatus),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("catalog: upsert product %q: %w", p.Name, err)
	}
	return id, nil
}

func (r *repository) SetCosts(ctx context.Context, id int64, cost, retailPrice float64) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE products SET cost = $2, retail_price = $3, updated_at = now() WHERE id = $1",
		id, cost, retailPrice)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) CreatePlaceholder(ctx context.Context, wooProductID int64) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO products (woo_product_id, name, stock_status)
		VALUES ($1, $2, $3)
		ON CONFLICT (woo_product_id) DO UPDATE SET updated_at = now()
		RETURNING id`,
		wooProductID, PlaceholderName(wooProductID), string(StockOut),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("catalog: placeholder for %d: %w", wooProductID, err)
	}
	return id, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]Product, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		fmt.Sprintf("SELECT %s FROM products ORDER BY name, id LIMIT $1 OFFSET $2", productColumns),
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

func (r *repository) ExistingWooIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := r.db.Query(ctx, "SELECT woo_product_id FROM products WHERE woo_product_id IS NOT NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func (r *repository) UpsertPriceTier(ctx context.Context, tier PriceTier) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO product_price_tiers (product_id, min_qty, price)
		VALUES ($1,$2,$3)
		ON CONFLICT (product_id, min_qty) DO UPDATE SET price = EXCLUDED.price`,
		tier.ProductID, tier.MinQty, tier.Price)
	return err
}

// TierPrice returns the best quantity-break price at or below qty.
func (r *repository) TierPrice(ctx context.Context, productID int64, qty int) (float64, bool, error) {
	var price pgtype.Numeric
	err := r.db.QueryRow(ctx, `
		SELECT price FROM product_price_tiers
		WHERE product_id = $1 AND min_qty <= $2
		ORDER BY min_qty DESC LIMIT 1`, productID, qty).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	f, _ := price.Float64Value()
	return f.Float64, true, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	var wooID pgtype.Int8
	var cost, retail pgtype.Numeric
	var status string
	var createdAt, updatedAt pgtype.Timestamptz

	err := row.Scan(&p.ID, &wooID, &p.Name, &p.SKU, &cost, &retail, &p.Stock, &status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if wooID.Valid {
		val := wooID.Int64
		p.WooProductID = &val
	}
	if cost.Valid {
		f, _ := cost.Float64Value()
		p.Cost = f.Float64
	}
	if retail.Valid {
		f, _ := retail.Float64Value()
		p.RetailPrice = f.Float64
	}
	p.StockStatus = StockStatus(status)
	if createdAt.Valid {
		p.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return &p, nil
}
