package shipping

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shoplytics/shoplytics/internal/expenses"
	"github.com/shoplytics/shoplytics/internal/finance"
	"github.com/shoplytics/shoplytics/internal/orders"
	"github.com/shoplytics/shoplytics/internal/parse"
)

// Rater is the slice of the carrier client the service needs.
type Rater interface {
	CreateShipment(ctx context.Context, from, to Address, parcel Parcel) (*Shipment, error)
}

// OrderResolver finds orders for loosely formatted identifiers.
type OrderResolver interface {
	Resolve(ctx context.Context, identifier string) (*orders.Order, error)
}

// Service syncs carrier costs onto orders: it prices the shipment, rewrites
// the order's shipping-derived financials, and records an idempotent shipping
// expense. It runs as an asynq task handler, so a failure here is retried by
// the queue instead of being lost.
type Service struct {
	rater    Rater
	resolver OrderResolver
	orders   orders.Repository
	expenses expenses.Repository
	origin   Address
	parcel   Parcel
	currency string
	logger   *slog.Logger
}

// ServiceConfig collects the service dependencies.
type ServiceConfig struct {
	Rater    Rater
	Resolver OrderResolver
	Orders   orders.Repository
	Expenses expenses.Repository
	Origin   Address
	Parcel   Parcel
	Currency string
	Logger   *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	parcel := cfg.Parcel
	if parcel.DistanceUnit == "" {
		parcel = DefaultParcel()
	}
	return &Service{
		rater:    cfg.Rater,
		resolver: cfg.Resolver,
		orders:   cfg.Orders,
		expenses: cfg.Expenses,
		origin:   cfg.Origin,
		parcel:   parcel,
		currency: cfg.Currency,
		logger:   cfg.Logger,
	}
}

// DefaultParcel is the standard box used when an order carries no dimensions.
func DefaultParcel() Parcel {
	return Parcel{Length: 10, Width: 8, Height: 4, DistanceUnit: "in", Weight: 1, MassUnit: "lb"}
}

// SyncOrder prices the order's shipment and writes the cost back. The order
// identifier may be in any historical format; resolution falls back through
// the known encodings.
func (s *Service) SyncOrder(ctx context.Context, identifier string) error {
	o, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return fmt.Errorf("shipping: resolve order %q: %w", identifier, err)
	}
	if orders.IsExcludedStatus(o.Status) {
		s.logger.Info("skipping shipping sync for excluded status",
			slog.String("order_number", o.OrderNumber),
			slog.String("status", o.Status))
		return nil
	}
	if o.ShipTo.Empty() {
		s.logger.Warn("order has no destination address, skipping shipping sync",
			slog.String("order_number", o.OrderNumber))
		return nil
	}

	shipment, err := s.rater.CreateShipment(ctx, s.origin, Address{
		Street1: o.ShipTo.Address1,
		Street2: o.ShipTo.Address2,
		City:    o.ShipTo.City,
		State:   o.ShipTo.State,
		Zip:     o.ShipTo.Postcode,
		Country: o.ShipTo.Country,
	}, s.parcel)
	if err != nil {
		return fmt.Errorf("shipping: rate %s: %w", o.OrderNumber, err)
	}

	rate, ok := CheapestRate(shipment.Rates, s.currency)
	if !ok {
		s.logger.Warn("no rates returned for shipment", slog.String("order_number", o.OrderNumber))
		return nil
	}
	cost := parse.Money(rate.Amount)

	absorbed := finance.ShippingCostAbsorbed(cost, o.ShippingCharged, o.FreeShipping)
	profit := o.Total - (o.ProductCost + absorbed)

	if err := s.orders.UpdateShipping(ctx, o.OrderNumber, cost, absorbed, profit); err != nil {
		return fmt.Errorf("shipping: update order %s: %w", o.OrderNumber, err)
	}
	if err := s.expenses.UpsertShipping(ctx, o.OrderNumber, o.OrderDate, cost); err != nil {
		return fmt.Errorf("shipping: record expense for %s: %w", o.OrderNumber, err)
	}

	s.logger.Info("shipping cost synced",
		slog.String("order_number", o.OrderNumber),
		slog.String("provider", rate.Provider),
		slog.Float64("cost", cost))
	return nil
}
