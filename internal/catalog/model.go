package catalog

import (
	"fmt"
	"strings"
	"time"
)

// StockStatus is the tri-state availability of a product.
type StockStatus string

const (
	StockIn  StockStatus = "in_stock"
	StockLow StockStatus = "low_stock"
	StockOut StockStatus = "out_of_stock"
)

// NormalizeStockStatus maps free-form source values onto the tri-state,
// case-insensitively. Unknown values fall back to out of stock.
func NormalizeStockStatus(s string) StockStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "instock", "in stock", "in_stock":
		return StockIn
	case "lowstock", "low stock", "low_stock", "onbackorder":
		return StockLow
	default:
		return StockOut
	}
}

// Product is one catalog item. Sales-derived figures (quantity sold, revenue,
// profit) are aggregated from order lines at read time and never stored here.
type Product struct {
	ID           int64       `json:"id"`
	WooProductID *int64      `json:"woo_product_id,omitempty"`
	Name         string      `json:"name"`
	SKU          string      `json:"sku"`
	Cost         float64     `json:"cost"`
	RetailPrice  float64     `json:"retail_price"`
	Stock        int         `json:"stock"`
	StockStatus  StockStatus `json:"stock_status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// PriceTier is a quantity-break price for a product, from the flat-file
// tiered pricing sheet.
type PriceTier struct {
	ProductID int64   `json:"product_id"`
	MinQty    int     `json:"min_qty"`
	Price     float64 `json:"price"`
}

// PlaceholderName is the name given to a product auto-created when an order
// line references an id the catalog has never seen.
func PlaceholderName(wooProductID int64) string {
	return fmt.Sprintf("Product %d", wooProductID)
}
