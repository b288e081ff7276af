package orders

import (
	"strings"
	"time"
)

// CanonicalNumber formats a source order identifier into the stored shape.
// Already-canonical input passes through unchanged.
func CanonicalNumber(numberOrID string) string {
	s := strings.TrimSpace(numberOrID)
	s = strings.TrimSpace(strings.TrimPrefix(s, "Order #"))
	return "Order #" + s
}

// Order is one customer transaction with its aggregate financial fields.
type Order struct {
	ID                   int64     `json:"id"`
	OrderNumber          string    `json:"order_number"`
	WooOrderID           *int64    `json:"woo_order_id,omitempty"`
	Status               string    `json:"status"`
	CustomerName         string    `json:"customer_name"`
	CustomerEmail        string    `json:"customer_email"`
	OrderDate            time.Time `json:"order_date"`
	Subtotal             float64   `json:"subtotal"`
	ShippingCharged      float64   `json:"shipping_charged"`
	ShippingCost         float64   `json:"shipping_cost"`
	CouponCode           string    `json:"coupon_code"`
	CouponDiscount       float64   `json:"coupon_discount"`
	FreeShipping         bool      `json:"free_shipping"`
	Total                float64   `json:"total"`
	ProductCost          float64   `json:"product_cost"`
	ShippingCostAbsorbed float64   `json:"shipping_cost_absorbed"`
	Profit               float64   `json:"profit"`
	ShipTo               ShipTo    `json:"ship_to"`
	Lines                []Line    `json:"lines,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Line is one product entry within an order.
type Line struct {
	ID           int64   `json:"id"`
	OrderID      int64   `json:"order_id"`
	LineUID      string  `json:"line_uid"`
	ProductID    int64   `json:"product_id"`
	Quantity     int     `json:"quantity"`
	CostPerUnit  float64 `json:"cost_per_unit"`
	PricePerUnit float64 `json:"price_per_unit"`
	Total        float64 `json:"total"`
	Cost         float64 `json:"cost"`
	Profit       float64 `json:"profit"`
}

// ShipTo is the destination used when pricing carrier shipments.
type ShipTo struct {
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Empty reports whether no destination is known.
func (s ShipTo) Empty() bool {
	return s == ShipTo{}
}

// IngestLine is one usable order line before product resolution. ProductID is
// set when the source already resolved the internal product, WooProductID when
// it carries the external id. CostPerUnit is set only by sources that carry
// internal costs (the CSV import); nil means the cost comes from the catalog.
type IngestLine struct {
	ProductID    int64
	WooProductID int64
	LineUID      string
	Quantity     int
	PricePerUnit float64
	CostPerUnit  *float64
}

// Ingest is the normalized form of one external order, ready for product
// resolution and financial computation.
type Ingest struct {
	Order        Order
	Lines        []IngestLine
	DroppedLines int
}

// Statuses that mean no money changed hands. Orders in these states are held
// in storage but never contribute to revenue or profit aggregates.
var ExcludedStatuses = []string{"checkout-draft", "cancelled", "draft"}

// IsExcludedStatus reports whether s denotes a no-revenue order.
func IsExcludedStatus(s string) bool {
	for _, excluded := range ExcludedStatuses {
		if s == excluded {
			return true
		}
	}
	return false
}
