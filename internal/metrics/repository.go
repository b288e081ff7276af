package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shoplytics/shoplytics/internal/orders"
)

// Repository exposes the aggregate queries the dashboard relies on.
// Every order aggregate excludes draft and cancelled statuses.
type Repository interface {
	OrderTotals(ctx context.Context, w Window) (OrderTotals, error)
	ExpenseTotal(ctx context.Context, w Window) (float64, error)
	ActiveProductCount(ctx context.Context) (int, error)
	DailyOrders(ctx context.Context, w Window) (map[string]OrderTotals, error)
	DailyExpenses(ctx context.Context, w Window) (map[string]float64, error)
	TopProducts(ctx context.Context, w Window, limit int) ([]TopProduct, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the Postgres backed aggregate reader. A replica pool
// works here since everything is read-only.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// windowArgs normalises the half-open range for SQL. A zero From means
// unbounded, expressed as the epoch rather than branching the query text.
func windowArgs(w Window) (time.Time, time.Time) {
	from := w.From
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	return from, w.To
}

func (r *pgRepository) OrderTotals(ctx context.Context, w Window) (OrderTotals, error) {
	from, to := windowArgs(w)
	const q = `
		SELECT COALESCE(SUM(total), 0), COALESCE(SUM(profit), 0), COUNT(*)
		FROM orders
		WHERE status != ALL($1) AND order_date >= $2 AND order_date < $3`
	var revenue, profit pgtype.Numeric
	var count int
	err := r.pool.QueryRow(ctx, q, orders.ExcludedStatuses, from, to).Scan(&revenue, &profit, &count)
	if err != nil {
		return OrderTotals{}, err
	}
	return OrderTotals{
		Revenue: numericFloat(revenue),
		Profit:  numericFloat(profit),
		Orders:  count,
	}, nil
}

func (r *pgRepository) ExpenseTotal(ctx context.Context, w Window) (float64, error) {
	from, to := windowArgs(w)
	const q = `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE expense_date >= $1::date AND expense_date < $2::date`
	var total pgtype.Numeric
	if err := r.pool.QueryRow(ctx, q, from, to).Scan(&total); err != nil {
		return 0, err
	}
	return numericFloat(total), nil
}

func (r *pgRepository) ActiveProductCount(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM products WHERE stock_status = 'in_stock' AND stock > 0`
	var count int
	if err := r.pool.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *pgRepository) DailyOrders(ctx context.Context, w Window) (map[string]OrderTotals, error) {
	from, to := windowArgs(w)
	const q = `
		SELECT order_date::date, COALESCE(SUM(total), 0), COALESCE(SUM(profit), 0), COUNT(*)
		FROM orders
		WHERE status != ALL($1) AND order_date >= $2 AND order_date < $3
		GROUP BY order_date::date`
	rows, err := r.pool.Query(ctx, q, orders.ExcludedStatuses, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]OrderTotals)
	for rows.Next() {
		var day time.Time
		var revenue, profit pgtype.Numeric
		var count int
		if err := rows.Scan(&day, &revenue, &profit, &count); err != nil {
			return nil, err
		}
		out[day.Format("2006-01-02")] = OrderTotals{
			Revenue: numericFloat(revenue),
			Profit:  numericFloat(profit),
			Orders:  count,
		}
	}
	return out, rows.Err()
}

func (r *pgRepository) DailyExpenses(ctx context.Context, w Window) (map[string]float64, error) {
	from, to := windowArgs(w)
	const q = `
		SELECT expense_date, COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE expense_date >= $1::date AND expense_date < $2::date
		GROUP BY expense_date`
	rows, err := r.pool.Query(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var day time.Time
		var amount pgtype.Numeric
		if err := rows.Scan(&day, &amount); err != nil {
			return nil, err
		}
		out[day.Format("2006-01-02")] = numericFloat(amount)
	}
	return out, rows.Err()
}

func (r *pgRepository) TopProducts(ctx context.Context, w Window, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = 10
	}
	from, to := windowArgs(w)
	const q = `
		SELECT p.id, p.name,
		       COALESCE(SUM(l.quantity), 0),
		       COALESCE(SUM(l.total), 0),
		       COALESCE(SUM(l.profit), 0)
		FROM order_lines l
		JOIN orders o ON o.id = l.order_id
		JOIN products p ON p.id = l.product_id
		WHERE o.status != ALL($1) AND o.order_date >= $2 AND o.order_date < $3
		GROUP BY p.id, p.name
		ORDER BY SUM(l.total) DESC, p.name ASC
		LIMIT $4`
	rows, err := r.pool.Query(ctx, q, orders.ExcludedStatuses, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopProduct
	for rows.Next() {
		var tp TopProduct
		var revenue, profit pgtype.Numeric
		if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.Quantity, &revenue, &profit); err != nil {
			return nil, err
		}
		tp.Revenue = numericFloat(revenue)
		tp.Profit = numericFloat(profit)
		out = append(out, tp)
	}
	return out, rows.Err()
}

func numericFloat(n pgtype.Numeric) float64 {
	if !n.Valid {
		return 0
	}
	v, err := n.Float64Value()
	if err != nil || !v.Valid {
		return 0
	}
	return v.Float64
}
