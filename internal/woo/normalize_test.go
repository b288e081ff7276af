package woo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shoplytics/shoplytics/internal/catalog"
	"github.com/shoplytics/shoplytics/internal/finance"
)

func TestOrderNumber(t *testing.T) {
	require.Equal(t, "Order #1791", OrderNumber("1791"))
	require.Equal(t, "Order #1791", OrderNumber(" 1791 "))
}

func TestNormalizeOrder(t *testing.T) {
	src := Order{
		ID:            310,
		Number:        "1791",
		Status:        "processing",
		DateCreated:   "2024-06-01T09:30:00",
		ShippingTotal: "8.00",
		ShippingTax:   "2.00",
		DiscountTotal: "5.00",
		Billing:       Billing{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		CouponLines:   []CouponLine{{Code: "SAVE10", Discount: "5.00"}},
		LineItems: []LineItem{
			{ID: 11, ProductID: 7, Quantity: 2, Subtotal: "40.00", Price: 20},
			{ID: 12, ProductID: 8, Quantity: 1, Subtotal: "60.00"},
			{ID: 13, ProductID: 0, Quantity: 1, Subtotal: "10.00"},
			{ID: 14, ProductID: 9, Quantity: 0, Subtotal: "10.00"},
		},
	}

	got := NormalizeOrder(src)
	o := got.Order

	require.Equal(t, "Order #1791", o.OrderNumber)
	require.NotNil(t, o.WooOrderID)
	require.EqualValues(t, 310, *o.WooOrderID)
	require.Equal(t, "Ada Lovelace", o.CustomerName)
	require.Equal(t, "SAVE10", o.CouponCode)
	require.InDelta(t, 10, o.ShippingCharged, 1e-9)
	require.False(t, o.FreeShipping)
	require.InDelta(t, 5, o.CouponDiscount, 1e-9)
	require.Equal(t, 2024, o.OrderDate.Year())

	// Two lines dropped: product id 0 and quantity 0.
	require.Equal(t, 2, got.DroppedLines)
	require.Len(t, got.Lines, 2)

	// Explicit unit price preferred; derived from subtotal/qty otherwise.
	require.InDelta(t, 20, got.Lines[0].PricePerUnit, 1e-9)
	require.InDelta(t, 60, got.Lines[1].PricePerUnit, 1e-9)

	// Subtotal is the sum of usable line amounts.
	require.InDelta(t, 100, o.Subtotal, 1e-9)
}

func TestNormalizeOrderFreeShipping(t *testing.T) {
	got := NormalizeOrder(Order{ID: 1, Number: "9", ShippingTotal: "0.00", ShippingTax: "0.00"})
	require.True(t, got.Order.FreeShipping)
	require.InDelta(t, 0, got.Order.ShippingCharged, 1e-9)
}

func TestNormalizeOrderFallsBackToID(t *testing.T) {
	got := NormalizeOrder(Order{ID: 55})
	require.Equal(t, "Order #55", got.Order.OrderNumber)
}

func TestNormalizeProduct(t *testing.T) {
	stock := 12
	p := NormalizeProduct(Product{
		ID:            7,
		Name:          "Widget",
		SKU:           "W-7",
		Price:         "19.99",
		StockQuantity: &stock,
		StockStatus:   "instock",
	})
	require.Equal(t, "Widget", p.Name)
	require.NotNil(t, p.WooProductID)
	require.InDelta(t, 19.99, p.RetailPrice, 1e-9)
	require.Equal(t, 12, p.Stock)
	require.Equal(t, catalog.StockIn, p.StockStatus)
	// Cost is never carried by the source.
	require.Zero(t, p.Cost)
}

func TestNormalizeCoupon(t *testing.T) {
	code, kind, value := NormalizeCoupon(Coupon{Code: "SAVE10", DiscountType: "percent", Amount: "10"})
	require.Equal(t, "SAVE10", code)
	require.Equal(t, finance.DiscountPercent, kind)
	require.InDelta(t, 10, value, 1e-9)

	_, kind, _ = NormalizeCoupon(Coupon{Code: "FLAT5", DiscountType: "fixed_cart", Amount: "5"})
	require.Equal(t, finance.DiscountFixed, kind)
}
