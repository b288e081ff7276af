package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shoplytics/shoplytics/internal/platform/db"
)

var ErrNotFound = errors.New("order not found")

// Repository is the storage surface for orders and their lines.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
	SearchByNumberFragment(ctx context.Context, fragment string) ([]Order, error)
	Upsert(ctx context.Context, o Order) (int64, error)
	UpsertLine(ctx context.Context, line Line) error
	DeleteLinesNotIn(ctx context.Context, orderID int64, keepUIDs []string) error
	UpdateStatus(ctx context.Context, orderNumber, status string) error
	UpdateShipping(ctx context.Context, orderNumber string, shippingCost, absorbed, profit float64) error
	ExistingWooIDs(ctx context.Context) (map[int64]struct{}, error)
	List(ctx context.Context, req ListRequest) ([]Order, int, error)
}

// ListRequest filters the order listing.
type ListRequest struct {
	Status   *string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const orderColumns = `id, order_number, woo_order_id, status, customer_name, customer_email,
	order_date, subtotal, shipping_charged, shipping_cost, coupon_code, coupon_discount,
	free_shipping, total, product_cost, shipping_cost_absorbed, profit, ship_to, created_at, updated_at`

func (r *repository) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM orders WHERE order_number = $1", orderColumns), orderNumber)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	lines, err := r.linesFor(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return o, nil
}

func (r *repository) SearchByNumberFragment(ctx context.Context, fragment string) ([]Order, error) {
	rows, err := r.db.Query(ctx,
		fmt.Sprintf("SELECT %s FROM orders WHERE order_number ILIKE $1 ORDER BY length(order_number), order_number", orderColumns),
		"%"+fragment+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Upsert writes the order keyed by order_number. All financial fields are
// overwritten, not merged; manual edits survive only on columns the sync does
// not carry.
func (r *repository) Upsert(ctx context.Context, o Order) (int64, error) {
	var wooID pgtype.Int8
	if o.WooOrderID != nil {
		wooID = pgtype.Int8{Int64: *o.WooOrderID, Valid: true}
	}
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO orders (
			order_number, woo_order_id, status, customer_name, customer_email, order_date,
			subtotal, shipping_charged, shipping_cost, coupon_code, coupon_discount,
			free_shipping, total, product_cost, shipping_cost_absorbed, profit, ship_to
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (order_number) DO UPDATE SET
			woo_order_id = COALESCE(EXCLUDED.woo_order_id, orders.woo_order_id),
			status = EXCLUDED.status,
			customer_name = EXCLUDED.customer_name,
			customer_email = EXCLUDED.customer_email,
			order_date = EXCLUDED.order_date,
			subtotal = EXCLUDED.subtotal,
			shipping_charged = EXCLUDED.shipping_charged,
			shipping_cost = EXCLUDED.shipping_cost,
			coupon_code = EXCLUDED.coupon_code,
			coupon_discount = EXCLUDED.coupon_discount,
			free_shipping = EXCLUDED.free_shipping,
			total = EXCLUDED.total,
			product_cost = EXCLUDED.product_cost,
			shipping_cost_absorbed = EXCLUDED.shipping_cost_absorbed,
			profit = EXCLUDED.profit,
			ship_to = EXCLUDED.ship_to,
			updated_at = now()
		RETURNING id`,
		o.OrderNumber, wooID, o.Status, o.CustomerName, o.CustomerEmail, o.OrderDate,
		o.Subtotal, o.ShippingCharged, o.ShippingCost, o.CouponCode, o.CouponDiscount,
		o.FreeShipping, o.Total, o.ProductCost, o.ShippingCostAbsorbed, o.Profit, o.ShipTo,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("orders: upsert %s: %w", o.OrderNumber, err)
	}
	return id, nil
}

func (r *repository) UpsertLine(ctx context.Context, line Line) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO order_lines (order_id, line_uid, product_id, quantity,
			cost_per_unit, price_per_unit, total, cost, profit)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (order_id, line_uid) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			quantity = EXCLUDED.quantity,
			cost_per_unit = EXCLUDED.cost_per_unit,
			price_per_unit = EXCLUDED.price_per_unit,
			total = EXCLUDED.total,
			cost = EXCLUDED.cost,
			profit = EXCLUDED.profit`,
		line.OrderID, line.LineUID, line.ProductID, line.Quantity,
		line.CostPerUnit, line.PricePerUnit, line.Total, line.Cost, line.Profit)
	if err != nil {
		return fmt.Errorf("orders: upsert line %s: %w", line.LineUID, err)
	}
	return nil
}

// DeleteLinesNotIn removes lines dropped upstream so a re-sync converges on
// the source's line set.
func (r *repository) DeleteLinesNotIn(ctx context.Context, orderID int64, keepUIDs []string) error {
	if len(keepUIDs) == 0 {
		_, err := r.db.Exec(ctx, "DELETE FROM order_lines WHERE order_id = $1", orderID)
		return err
	}
	_, err := r.db.Exec(ctx,
		"DELETE FROM order_lines WHERE order_id = $1 AND line_uid != ALL($2)",
		orderID, keepUIDs)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, orderNumber, status string) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE orders SET status = $2, updated_at = now() WHERE order_number = $1",
		orderNumber, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateShipping rewrites the shipping-derived financial columns after a
// carrier-rate sync.
func (r *repository) UpdateShipping(ctx context.Context, orderNumber string, shippingCost, absorbed, profit float64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders SET shipping_cost = $2, shipping_cost_absorbed = $3,
			profit = $4, updated_at = now()
		WHERE order_number = $1`,
		orderNumber, shippingCost, absorbed, profit)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) ExistingWooIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := r.db.Query(ctx, "SELECT woo_order_id FROM orders WHERE woo_order_id IS NOT NULL")
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

func (r *repository) List(ctx context.Context, req ListRequest) ([]Order, int, error) {
	conditions := []string{"TRUE"}
	var args []interface{}
	argPos := 1

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("order_date >= $%d", argPos))
		args = append(args, *req.DateFrom)
		argPos++
	}
	if req.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("order_date <= $%d", argPos))
		args = append(args, *req.DateTo)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM orders %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if req.Limit <= 0 {
		req.Limit = 50
	}
	query := fmt.Sprintf("SELECT %s FROM orders %s ORDER BY order_date DESC, id DESC LIMIT $%d OFFSET $%d",
		orderColumns, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

func (r *repository) linesFor(ctx context.Context, orderID int64) ([]Line, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, line_uid, product_id, quantity,
			cost_per_unit, price_per_unit, total, cost, profit
		FROM order_lines WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		var costPer, pricePer, total, cost, profit pgtype.Numeric
		if err := rows.Scan(&l.ID, &l.OrderID, &l.LineUID, &l.ProductID, &l.Quantity,
			&costPer, &pricePer, &total, &cost, &profit); err != nil {
			return nil, err
		}
		l.CostPerUnit = numericFloat(costPer)
		l.PricePerUnit = numericFloat(pricePer)
		l.Total = numericFloat(total)
		l.Cost = numericFloat(cost)
		l.Profit = numericFloat(profit)
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var wooID pgtype.Int8
	var subtotal, shippingCharged, shippingCost, couponDiscount pgtype.Numeric
	var total, productCost, absorbed, profit pgtype.Numeric
	var orderDate, createdAt, updatedAt pgtype.Timestamptz

	err := row.Scan(&o.ID, &o.OrderNumber, &wooID, &o.Status, &o.CustomerName, &o.CustomerEmail,
		&orderDate, &subtotal, &shippingCharged, &shippingCost, &o.CouponCode, &couponDiscount,
		&o.FreeShipping, &total, &productCost, &absorbed, &profit, &o.ShipTo, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if wooID.Valid {
		val := wooID.Int64
		o.WooOrderID = &val
	}
	if orderDate.Valid {
		o.OrderDate = orderDate.Time
	}
	o.Subtotal = numericFloat(subtotal)
	o.ShippingCharged = numericFloat(shippingCharged)
	o.ShippingCost = numericFloat(shippingCost)
	o.CouponDiscount = numericFloat(couponDiscount)
	o.Total = numericFloat(total)
	o.ProductCost = numericFloat(productCost)
	o.ShippingCostAbsorbed = numericFloat(absorbed)
	o.Profit = numericFloat(profit)
	if createdAt.Valid {
		o.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		o.UpdatedAt = updatedAt.Time
	}
	return &o, nil
}

func numericFloat(n pgtype.Numeric) float64 {
	if !n.Valid {
		return 0
	}
	f, _ := n.Float64Value()
	return f.Float64
}
