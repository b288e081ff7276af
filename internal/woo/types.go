package woo

// Wire shapes of the WooCommerce REST API v3, reduced to the fields the sync
// consumes. Money fields arrive as strings.

type Order struct {
	ID            int64        `json:"id"`
	Number        string       `json:"number"`
	Status        string       `json:"status"`
	DateCreated   string       `json:"date_created"`
	Total         string       `json:"total"`
	Subtotal      string       `json:"subtotal"`
	ShippingTotal string       `json:"shipping_total"`
	ShippingTax   string       `json:"shipping_tax"`
	DiscountTotal string       `json:"discount_total"`
	Billing       Billing      `json:"billing"`
	LineItems     []LineItem   `json:"line_items"`
	CouponLines   []CouponLine `json:"coupon_lines"`
}

type Billing struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

type LineItem struct {
	ID        int64   `json:"id"`
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Subtotal  string  `json:"subtotal"`
	Total     string  `json:"total"`
	Price     float64 `json:"price"`
}

type CouponLine struct {
	Code     string `json:"code"`
	Discount string `json:"discount"`
}

type Product struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	SKU           string `json:"sku"`
	Price         string `json:"price"`
	RegularPrice  string `json:"regular_price"`
	StockQuantity *int   `json:"stock_quantity"`
	StockStatus   string `json:"stock_status"`
}

type Coupon struct {
	ID           int64  `json:"id"`
	Code         string `json:"code"`
	DiscountType string `json:"discount_type"`
	Amount       string `json:"amount"`
}
