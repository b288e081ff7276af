package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shoplytics/shoplytics/internal/catalog"
	"github.com/shoplytics/shoplytics/internal/coupons"
	"github.com/shoplytics/shoplytics/internal/finance"
	"github.com/shoplytics/shoplytics/internal/orders"
)

// TaskEnqueuer hands follow-up work to the background queue. Enqueue failures
// never fail the order they were triggered by.
type TaskEnqueuer interface {
	EnqueueShippingSync(ctx context.Context, orderNumber string) error
}

// Ingestor turns a normalized order into persisted rows: it resolves products,
// recomputes the financials from live coupon rules, and upserts the order and
// its lines in one transaction. Shared by the API sync, the webhook, and the
// CSV import.
type Ingestor struct {
	orders   orders.Repository
	products catalog.Repository
	coupons  coupons.Repository
	enqueuer TaskEnqueuer
	logger   *slog.Logger
}

func NewIngestor(ordersRepo orders.Repository, products catalog.Repository, couponsRepo coupons.Repository, enqueuer TaskEnqueuer, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		orders:   ordersRepo,
		products: products,
		coupons:  couponsRepo,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// IngestOrder persists one normalized order. Returns the stored order number.
func (ing *Ingestor) IngestOrder(ctx context.Context, in orders.Ingest) (string, error) {
	if in.DroppedLines > 0 {
		ing.logger.Warn("dropped unusable order lines",
			slog.String("order_number", in.Order.OrderNumber),
			slog.Int("dropped", in.DroppedLines))
	}

	o := in.Order

	// Resolve each line against the catalog before any writes so a missing
	// product cannot leave a half-written order behind.
	type resolvedLine struct {
		productID int64
		line      orders.IngestLine
		unitCost  float64
	}
	resolved := make([]resolvedLine, 0, len(in.Lines))
	var productCost float64
	for _, line := range in.Lines {
		productID, unitCost, err := ing.resolveProduct(ctx, line)
		if err != nil {
			return "", fmt.Errorf("resolve product %d: %w", line.WooProductID, err)
		}
		resolved = append(resolved, resolvedLine{productID: productID, line: line, unitCost: unitCost})
		productCost += float64(line.Quantity) * unitCost
	}

	// Recompute the coupon discount from the live rule when we have one;
	// the externally reported figure is kept otherwise.
	if o.CouponCode != "" && ing.coupons != nil {
		coupon, err := ing.coupons.GetByCode(ctx, o.CouponCode)
		switch {
		case err == nil:
			o.CouponDiscount = finance.CouponDiscount(coupon.DiscountType, coupon.DiscountValue, o.Subtotal)
		case errors.Is(err, coupons.ErrNotFound):
			ing.logger.Warn("unknown coupon code, keeping reported discount",
				slog.String("order_number", o.OrderNumber),
				slog.String("code", o.CouponCode))
		default:
			return "", fmt.Errorf("lookup coupon %s: %w", o.CouponCode, err)
		}
	}

	totals := finance.ComputeOrder(finance.OrderInputs{
		Subtotal:        o.Subtotal,
		ShippingCharged: o.ShippingCharged,
		ShippingCost:    o.ShippingCost,
		CouponDiscount:  o.CouponDiscount,
		ProductCost:     productCost,
		FreeShipping:    o.FreeShipping,
	})
	o.ProductCost = productCost
	o.Total = totals.Total
	o.ShippingCostAbsorbed = totals.ShippingCostAbsorbed
	o.Profit = totals.Profit

	err := ing.orders.WithTx(ctx, func(ctx context.Context, repo orders.Repository) error {
		orderID, err := repo.Upsert(ctx, o)
		if err != nil {
			return err
		}
		keepUIDs := make([]string, 0, len(resolved))
		for _, rl := range resolved {
			total, cost, profit := finance.LineTotals(rl.line.Quantity, rl.line.PricePerUnit, rl.unitCost)
			if err := repo.UpsertLine(ctx, orders.Line{
				OrderID:      orderID,
				LineUID:      rl.line.LineUID,
				ProductID:    rl.productID,
				Quantity:     rl.line.Quantity,
				CostPerUnit:  rl.unitCost,
				PricePerUnit: rl.line.PricePerUnit,
				Total:        total,
				Cost:         cost,
				Profit:       profit,
			}); err != nil {
				return err
			}
			keepUIDs = append(keepUIDs, rl.line.LineUID)
		}
		return repo.DeleteLinesNotIn(ctx, orderID, keepUIDs)
	})
	if err != nil {
		return "", err
	}

	if ing.enqueuer != nil && !orders.IsExcludedStatus(o.Status) {
		if err := ing.enqueuer.EnqueueShippingSync(ctx, o.OrderNumber); err != nil {
			ing.logger.Warn("enqueue shipping sync failed",
				slog.String("order_number", o.OrderNumber),
				slog.Any("error", err))
		}
	}
	return o.OrderNumber, nil
}

// resolveProduct maps an external product reference to an internal product id
// and unit cost: by external id, falling back to treating the reference as an
// internal id, falling back to creating a placeholder so the sale is kept.
func (ing *Ingestor) resolveProduct(ctx context.Context, line orders.IngestLine) (int64, float64, error) {
	if line.ProductID > 0 {
		p, err := ing.products.Get(ctx, line.ProductID)
		if err != nil {
			return 0, 0, err
		}
		return p.ID, unitCost(p, line), nil
	}

	if p, err := ing.products.GetByWooID(ctx, line.WooProductID); err == nil {
		return p.ID, unitCost(p, line), nil
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return 0, 0, err
	}

	if p, err := ing.products.Get(ctx, line.WooProductID); err == nil {
		return p.ID, unitCost(p, line), nil
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return 0, 0, err
	}

	id, err := ing.products.CreatePlaceholder(ctx, line.WooProductID)
	if err != nil {
		return 0, 0, err
	}
	ing.logger.Info("created placeholder product", slog.Int64("woo_product_id", line.WooProductID))
	cost := 0.0
	if line.CostPerUnit != nil {
		cost = *line.CostPerUnit
	}
	return id, cost, nil
}

func unitCost(p *catalog.Product, line orders.IngestLine) float64 {
	if line.CostPerUnit != nil {
		return *line.CostPerUnit
	}
	return p.Cost
}
