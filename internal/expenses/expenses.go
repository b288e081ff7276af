// Package expenses records costs outside order lines: rent, ads, and the
// carrier charges written by the shipping sync.
package expenses

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CategoryShipping is the category under which the shipping sync records
// carrier costs, one expense per order.
const CategoryShipping = "Shipping"

// Expense is one recorded cost, optionally linked back to an order.
type Expense struct {
	ID          int64     `json:"id"`
	ExpenseDate time.Time `json:"expense_date"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	OrderNumber *string   `json:"order_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository is the storage surface for expenses.
type Repository interface {
	Insert(ctx context.Context, e Expense) (int64, error)
	// UpsertShipping records the carrier cost for an order idempotently:
	// re-syncing the same order's shipping overwrites rather than duplicates.
	UpsertShipping(ctx context.Context, orderNumber string, date time.Time, amount float64) error
	// ImportRow inserts a flat-file expense, skipping rows already present so
	// re-running an import does not duplicate. Reports whether a row landed.
	ImportRow(ctx context.Context, e Expense) (bool, error)
	List(ctx context.Context, from, to time.Time) ([]Expense, error)
	TotalBetween(ctx context.Context, from, to time.Time) (float64, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Insert(ctx context.Context, e Expense) (int64, error) {
	var orderNumber pgtype.Text
	if e.OrderNumber != nil {
		orderNumber = pgtype.Text{String: *e.OrderNumber, Valid: true}
	}
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO expenses (expense_date, category, description, amount, order_number)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id`,
		e.ExpenseDate, e.Category, e.Description, e.Amount, orderNumber).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("expenses: insert: %w", err)
	}
	return id, nil
}

func (r *repository) UpsertShipping(ctx context.Context, orderNumber string, date time.Time, amount float64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO expenses (expense_date, category, description, amount, order_number)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_number, category) WHERE order_number IS NOT NULL
		DO UPDATE SET expense_date = EXCLUDED.expense_date, amount = EXCLUDED.amount`,
		date, CategoryShipping, "Carrier cost for "+orderNumber, amount, orderNumber)
	if err != nil {
		return fmt.Errorf("expenses: upsert shipping for %s: %w", orderNumber, err)
	}
	return nil
}

func (r *repository) ImportRow(ctx context.Context, e Expense) (bool, error) {
	if e.OrderNumber != nil {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO expenses (expense_date, category, description, amount, order_number)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (order_number, category) WHERE order_number IS NOT NULL
			DO UPDATE SET expense_date = EXCLUDED.expense_date,
				description = EXCLUDED.description,
				amount = EXCLUDED.amount`,
			e.ExpenseDate, e.Category, e.Description, e.Amount, *e.OrderNumber)
		if err != nil {
			return false, fmt.Errorf("expenses: import row for %s: %w", *e.OrderNumber, err)
		}
		return true, nil
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO expenses (expense_date, category, description, amount)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (expense_date, category, description, amount) WHERE order_number IS NULL
		DO NOTHING`,
		e.ExpenseDate, e.Category, e.Description, e.Amount)
	if err != nil {
		return false, fmt.Errorf("expenses: import row: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *repository) List(ctx context.Context, from, to time.Time) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, expense_date, category, description, amount, order_number, created_at
		FROM expenses WHERE expense_date >= $1 AND expense_date <= $2
		ORDER BY expense_date, id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		var amount pgtype.Numeric
		var orderNumber pgtype.Text
		var expenseDate pgtype.Date
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&e.ID, &expenseDate, &e.Category, &e.Description, &amount, &orderNumber, &createdAt); err != nil {
			return nil, err
		}
		if expenseDate.Valid {
			e.ExpenseDate = expenseDate.Time
		}
		if amount.Valid {
			f, _ := amount.Float64Value()
			e.Amount = f.Float64
		}
		if orderNumber.Valid {
			val := orderNumber.String
			e.OrderNumber = &val
		}
		if createdAt.Valid {
			e.CreatedAt = createdAt.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) TotalBetween(ctx context.Context, from, to time.Time) (float64, error) {
	var total pgtype.Numeric
	err := r.pool.QueryRow(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE expense_date >= $1 AND expense_date <= $2",
		from, to).Scan(&total)
	if err != nil {
		return 0, err
	}
	f, _ := total.Float64Value()
	return f.Float64, nil
}
