// Package finance holds the order-level money math. Everything here is a pure
// function over already-normalized numeric inputs.
package finance

// DiscountType enumerates how a coupon reduces the subtotal.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Change describes a period-over-period delta.
type Change struct {
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
}

// ProfitMargin returns profit as a percentage of revenue, 0 when revenue is 0.
func ProfitMargin(revenue, profit float64) float64 {
	if revenue == 0 {
		return 0
	}
	return profit / revenue * 100
}

// AverageOrderValue returns revenue per order, 0 when count is 0.
func AverageOrderValue(revenue float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return revenue / float64(count)
}

// PeriodChange computes the absolute and relative change between two periods.
// When the previous value is 0 the percent is 100 if the current value is
// positive, otherwise 0.
func PeriodChange(current, previous float64) Change {
	c := Change{Value: current - previous}
	switch {
	case previous == 0 && current > 0:
		c.Percent = 100
	case previous == 0:
		c.Percent = 0
	default:
		c.Percent = (current - previous) / previous * 100
	}
	return c
}

// CouponDiscount recomputes the discount a coupon grants on a subtotal.
// The discount never exceeds the subtotal.
func CouponDiscount(kind DiscountType, value, subtotal float64) float64 {
	var discount float64
	switch kind {
	case DiscountPercent:
		discount = subtotal * value / 100
	case DiscountFixed:
		discount = value
	default:
		return 0
	}
	if discount > subtotal {
		return subtotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}

// ShippingCostAbsorbed returns the portion of the carrier cost the business
// eats. With free shipping the whole cost is absorbed; otherwise only the
// shortfall between cost and what the customer was charged, never negative.
func ShippingCostAbsorbed(shippingCost, shippingCharged float64, freeShipping bool) float64 {
	if freeShipping {
		return shippingCost
	}
	absorbed := shippingCost - shippingCharged
	if absorbed < 0 {
		return 0
	}
	return absorbed
}

// OrderInputs carries the normalized figures an order's totals derive from.
type OrderInputs struct {
	Subtotal        float64
	ShippingCharged float64
	ShippingCost    float64
	CouponDiscount  float64
	ProductCost     float64
	FreeShipping    bool
}

// OrderTotals is the derived financial state of one order.
type OrderTotals struct {
	Total                float64
	ShippingCostAbsorbed float64
	Cost                 float64
	Profit               float64
}

// ComputeOrder applies the order invariants:
// total = subtotal + shipping_charged - coupon_discount,
// cost = product_cost + shipping_cost_absorbed, profit = total - cost.
func ComputeOrder(in OrderInputs) OrderTotals {
	absorbed := ShippingCostAbsorbed(in.ShippingCost, in.ShippingCharged, in.FreeShipping)
	total := in.Subtotal + in.ShippingCharged - in.CouponDiscount
	cost := in.ProductCost + absorbed
	return OrderTotals{
		Total:                total,
		ShippingCostAbsorbed: absorbed,
		Cost:                 cost,
		Profit:               total - cost,
	}
}

// LineTotals derives the money amounts of one order line.
func LineTotals(qty int, unitPrice, unitCost float64) (total, cost, profit float64) {
	total = float64(qty) * unitPrice
	cost = float64(qty) * unitCost
	return total, cost, total - cost
}
