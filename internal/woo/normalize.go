package woo

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shoplytics/shoplytics/internal/catalog"
	"github.com/shoplytics/shoplytics/internal/finance"
	"github.com/shoplytics/shoplytics/internal/orders"
	"github.com/shoplytics/shoplytics/internal/parse"
)

// OrderNumber is the canonical stored format. Every ingestion path writes
// this shape regardless of how the source formatted its identifier.
func OrderNumber(numberOrID string) string {
	return orders.CanonicalNumber(numberOrID)
}

// NormalizeOrder maps one Woo order payload into the internal record shape.
// Lines without a positive product id and quantity are dropped and counted.
func NormalizeOrder(src Order) orders.Ingest {
	number := strings.TrimSpace(src.Number)
	if number == "" {
		number = fmt.Sprintf("%d", src.ID)
	}

	shippingCharged := parse.Money(src.ShippingTotal) + parse.Money(src.ShippingTax)

	o := orders.Order{
		OrderNumber:     OrderNumber(number),
		Status:          src.Status,
		CustomerName:    strings.TrimSpace(strings.TrimSpace(src.Billing.FirstName) + " " + strings.TrimSpace(src.Billing.LastName)),
		CustomerEmail:   strings.TrimSpace(src.Billing.Email),
		ShippingCharged: shippingCharged,
		FreeShipping:    shippingCharged == 0,
		CouponDiscount:  parse.Money(src.DiscountTotal),
		ShipTo: orders.ShipTo{
			Address1: strings.TrimSpace(src.Billing.Address1),
			Address2: strings.TrimSpace(src.Billing.Address2),
			City:     strings.TrimSpace(src.Billing.City),
			State:    strings.TrimSpace(src.Billing.State),
			Postcode: strings.TrimSpace(src.Billing.Postcode),
			Country:  strings.TrimSpace(src.Billing.Country),
		},
	}
	wooID := src.ID
	if wooID > 0 {
		o.WooOrderID = &wooID
	}
	if len(src.CouponLines) > 0 {
		o.CouponCode = src.CouponLines[0].Code
	}
	if t := parse.Date(src.DateCreated); t != nil {
		o.OrderDate = *t
	} else {
		o.OrderDate = time.Now().UTC()
	}

	out := orders.Ingest{Order: o}
	var subtotal float64
	for _, item := range src.LineItems {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			out.DroppedLines++
			continue
		}
		lineSubtotal := parse.Money(item.Subtotal)
		unitPrice := item.Price
		if unitPrice == 0 && item.Quantity > 0 {
			unitPrice = lineSubtotal / float64(item.Quantity)
		}
		uid := fmt.Sprintf("%d", item.ID)
		if item.ID <= 0 {
			uid = uuid.NewString()
		}
		out.Lines = append(out.Lines, orders.IngestLine{
			WooProductID: item.ProductID,
			LineUID:      uid,
			Quantity:     item.Quantity,
			PricePerUnit: unitPrice,
		})
		subtotal += float64(item.Quantity) * unitPrice
	}
	out.Order.Subtotal = subtotal
	return out
}

// NormalizeProduct maps one Woo product payload onto the catalog shape.
// Cost is not carried by the source and stays zero; the repository preserves
// any cost already on file.
func NormalizeProduct(src Product) catalog.Product {
	stock := 0
	if src.StockQuantity != nil {
		stock = *src.StockQuantity
	}
	id := src.ID
	p := catalog.Product{
		Name:        src.Name,
		SKU:         src.SKU,
		RetailPrice: parse.Money(firstNonEmpty(src.Price, src.RegularPrice)),
		Stock:       stock,
		StockStatus: catalog.NormalizeStockStatus(src.StockStatus),
	}
	if id > 0 {
		p.WooProductID = &id
	}
	return p
}

// NormalizeCoupon maps one Woo coupon payload onto the internal rule shape.
// Woo's "percent" maps directly; every other discount type behaves as a fixed
// amount against the cart subtotal.
func NormalizeCoupon(src Coupon) (code string, kind finance.DiscountType, value float64) {
	kind = finance.DiscountFixed
	if strings.EqualFold(src.DiscountType, "percent") {
		kind = finance.DiscountPercent
	}
	return strings.TrimSpace(src.Code), kind, parse.Money(src.Amount)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
