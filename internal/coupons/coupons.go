// Package coupons stores discount codes and their live rules. Orders recompute
// their coupon discount from these rules rather than trusting the externally
// reported figure, so analytics stay consistent with current definitions.
package coupons

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shoplytics/shoplytics/internal/finance"
)

var ErrNotFound = errors.New("coupon not found")

// Coupon is one discount code.
type Coupon struct {
	ID            int64                `json:"id"`
	Code          string               `json:"code"`
	DiscountType  finance.DiscountType `json:"discount_type"`
	DiscountValue float64              `json:"discount_value"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Repository is the storage surface for coupons.
type Repository interface {
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	Upsert(ctx context.Context, c Coupon) error
	List(ctx context.Context) ([]Coupon, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Coupon, error) {
	var c Coupon
	var value pgtype.Numeric
	var updatedAt pgtype.Timestamptz
	var kind string
	err := r.pool.QueryRow(ctx,
		"SELECT id, code, discount_type, discount_value, updated_at FROM coupons WHERE code = $1",
		code).Scan(&c.ID, &c.Code, &kind, &value, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.DiscountType = finance.DiscountType(kind)
	if value.Valid {
		f, _ := value.Float64Value()
		c.DiscountValue = f.Float64
	}
	if updatedAt.Valid {
		c.UpdatedAt = updatedAt.Time
	}
	return &c, nil
}

func (r *repository) Upsert(ctx context.Context, c Coupon) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO coupons (code, discount_type, discount_value)
		VALUES ($1,$2,$3)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			discount_value = EXCLUDED.discount_value,
			updated_at = now()`,
		c.Code, string(c.DiscountType), c.DiscountValue)
	if err != nil {
		return fmt.Errorf("coupons: upsert %s: %w", c.Code, err)
	}
	return nil
}

func (r *repository) List(ctx context.Context) ([]Coupon, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, code, discount_type, discount_value, updated_at FROM coupons ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Coupon
	for rows.Next() {
		var c Coupon
		var value pgtype.Numeric
		var updatedAt pgtype.Timestamptz
		var kind string
		if err := rows.Scan(&c.ID, &c.Code, &kind, &value, &updatedAt); err != nil {
			return nil, err
		}
		c.DiscountType = finance.DiscountType(kind)
		if value.Valid {
			f, _ := value.Float64Value()
			c.DiscountValue = f.Float64
		}
		if updatedAt.Valid {
			c.UpdatedAt = updatedAt.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
