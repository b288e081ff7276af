// Package importer loads the denormalized spreadsheet export: five CSV files
// replayed through the same normalization and upsert path as the live sync.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shoplytics/shoplytics/internal/catalog"
	"github.com/shoplytics/shoplytics/internal/coupons"
	"github.com/shoplytics/shoplytics/internal/expenses"
	"github.com/shoplytics/shoplytics/internal/finance"
	"github.com/shoplytics/shoplytics/internal/orders"
	"github.com/shoplytics/shoplytics/internal/parse"
)

// File names inside the import directory, processed in dependency order.
const (
	FileProducts      = "products.csv"
	FileTieredPricing = "tiered_pricing.csv"
	FileCoupons       = "coupons.csv"
	FileOrders        = "orders.csv"
	FileExpenses      = "expenses.csv"
)

// ProductStore is the catalog surface the import needs.
type ProductStore interface {
	GetByName(ctx context.Context, name string) (*catalog.Product, error)
	UpsertByName(ctx context.Context, p catalog.Product) (int64, error)
	UpsertPriceTier(ctx context.Context, tier catalog.PriceTier) error
	TierPrice(ctx context.Context, productID int64, qty int) (float64, bool, error)
}

// CouponStore writes coupon rules.
type CouponStore interface {
	Upsert(ctx context.Context, c coupons.Coupon) error
}

// ExpenseStore writes expense rows.
type ExpenseStore interface {
	ImportRow(ctx context.Context, e expenses.Expense) (bool, error)
}

// OrderIngestor is the shared order write path.
type OrderIngestor interface {
	IngestOrder(ctx context.Context, in orders.Ingest) (string, error)
}

// FileResult summarises one file of an import run.
type FileResult struct {
	File     string `json:"file"`
	Rows     int    `json:"rows"`
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Errors   int    `json:"errors"`
}

// Importer replays a spreadsheet export into the store.
type Importer struct {
	products ProductStore
	coupons  CouponStore
	expenses ExpenseStore
	ingestor OrderIngestor
	logger   *slog.Logger
}

// New constructs an Importer.
func New(products ProductStore, couponStore CouponStore, expenseStore ExpenseStore, ingestor OrderIngestor, logger *slog.Logger) *Importer {
	return &Importer{
		products: products,
		coupons:  couponStore,
		expenses: expenseStore,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Run imports every file found in dir, in dependency order. A missing file is
// skipped with a warning; a malformed file aborts the run.
func (im *Importer) Run(ctx context.Context, dir string) ([]FileResult, error) {
	steps := []struct {
		file string
		fn   func(context.Context, *CSVFile) (FileResult, error)
	}{
		{FileProducts, im.importProducts},
		{FileTieredPricing, im.importTiers},
		{FileCoupons, im.importCoupons},
		{FileOrders, im.importOrders},
		{FileExpenses, im.importExpenses},
	}

	var results []FileResult
	for _, step := range steps {
		path := filepath.Join(dir, step.file)
		f, err := OpenCSV(path)
		if os.IsNotExist(err) {
			im.logger.Warn("import file missing, skipping", slog.String("file", step.file))
			continue
		}
		if err != nil {
			return results, fmt.Errorf("importer: open %s: %w", step.file, err)
		}
		result, err := step.fn(ctx, f)
		f.Close()
		if err != nil {
			return results, fmt.Errorf("importer: %s: %w", step.file, err)
		}
		im.logger.Info("imported file",
			slog.String("file", result.File),
			slog.Int("rows", result.Rows),
			slog.Int("imported", result.Imported),
			slog.Int("skipped", result.Skipped),
			slog.Int("errors", result.Errors))
		results = append(results, result)
	}
	return results, nil
}

func (im *Importer) importProducts(ctx context.Context, f *CSVFile) (FileResult, error) {
	result := FileResult{File: FileProducts}
	for {
		row, ok, err := f.Next()
		if err != nil {
			return result, err
		}
		if !ok {
			break
		}
		result.Rows++

		name := strings.TrimSpace(row.Get("name"))
		if name == "" {
			result.Skipped++
			continue
		}
		p := catalog.Product{
			Name:        name,
			SKU:         strings.TrimSpace(row.Get("sku")),
			Cost:        parse.Money(row.Get("cost")),
			RetailPrice: parse.Money(row.Get("retail_price")),
			Stock:       parse.Int(row.Get("stock")),
			StockStatus: catalog.NormalizeStockStatus(row.Get("stock_status")),
		}
		if _, err := im.products.UpsertByName(ctx, p); err != nil {
			result.Errors++
			im.logger.Error("product import failed", slog.String("name", name), slog.Any("error", err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

func (im *Importer) importTiers(ctx context.Context, f *CSVFile) (FileResult, error) {
	result := FileResult{File: FileTieredPricing}
	for {
		row, ok, err := f.Next()
		if err != nil {
			return result, err
		}
		if !ok {
			break
		}
		result.Rows++

		name := strings.TrimSpace(row.Get("product"))
		minQty := parse.Int(row.Get("min_qty"))
		if name == "" || minQty <= 0 {
			result.Skipped++
			continue
		}
		p, err := im.products.GetByName(ctx, name)
		if err != nil {
			result.Errors++
			im.logger.Warn("tier references unknown product", slog.String("product", name))
			continue
		}
		tier := catalog.PriceTier{
			ProductID: p.ID,
			MinQty:    minQty,
			Price:     parse.Money(row.Get("price")),
		}
		if err := im.products.UpsertPriceTier(ctx, tier); err != nil {
			result.Errors++
			im.logger.Error("tier import failed", slog.String("product", name), slog.Any("error", err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

func (im *Importer) importCoupons(ctx context.Context, f *CSVFile) (FileResult, error) {
	result := FileResult{File: FileCoupons}
	for {
		row, ok, err := f.Next()
		if err != nil {
			return result, err
		}
		if !ok {
			break
		}
		result.Rows++

		code := strings.TrimSpace(row.Get("code"))
		if code == "" {
			result.Skipped++
			continue
		}
		kind := finance.DiscountFixed
		if strings.EqualFold(strings.TrimSpace(row.Get("type")), string(finance.DiscountPercent)) {
			kind = finance.DiscountPercent
		}
		c := coupons.Coupon{
			Code:          code,
			DiscountType:  kind,
			DiscountValue: parse.Money(row.Get("value")),
		}
		if err := im.coupons.Upsert(ctx, c); err != nil {
			result.Errors++
			im.logger.Error("coupon import failed", slog.String("code", code), slog.Any("error", err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

// orderGroup accumulates the denormalized rows of one order. The export
// repeats order-level fields on every line row; the first row wins.
type orderGroup struct {
	order orders.Order
	lines []orders.IngestLine
}

func (im *Importer) importOrders(ctx context.Context, f *CSVFile) (FileResult, error) {
	result := FileResult{File: FileOrders}

	groups := make(map[string]*orderGroup)
	var sequence []string

	for {
		row, ok, err := f.Next()
		if err != nil {
			return result, err
		}
		if !ok {
			break
		}
		result.Rows++

		rawNumber := strings.TrimSpace(row.Get("order_number"))
		if rawNumber == "" {
			result.Skipped++
			continue
		}
		number := orders.CanonicalNumber(rawNumber)

		group, seen := groups[number]
		if !seen {
			group = &orderGroup{order: im.orderFromRow(number, row)}
			groups[number] = group
			sequence = append(sequence, number)
		}

		line, ok, err := im.lineFromRow(ctx, number, row)
		if err != nil {
			return result, err
		}
		if !ok {
			result.Skipped++
			continue
		}
		group.lines = append(group.lines, line)
	}

	for _, number := range sequence {
		group := groups[number]
		in := orders.Ingest{Order: group.order, Lines: group.lines}
		recomputeSubtotal(&in)
		if _, err := im.ingestor.IngestOrder(ctx, in); err != nil {
			result.Errors++
			im.logger.Error("order import failed", slog.String("order_number", number), slog.Any("error", err))
			continue
		}
		result.Imported++
	}
	return result, nil
}

func (im *Importer) orderFromRow(number string, row Row) orders.Order {
	o := orders.Order{
		OrderNumber:     number,
		Status:          strings.ToLower(strings.TrimSpace(row.Get("status"))),
		CustomerName:    strings.TrimSpace(row.Get("customer")),
		CustomerEmail:   strings.TrimSpace(row.Get("email")),
		ShippingCharged: parse.Money(row.Get("shipping")),
		FreeShipping:    parse.Bool(row.Get("free_shipping")),
		CouponCode:      strings.TrimSpace(row.Get("coupon")),
		CouponDiscount:  parse.Money(row.Get("coupon_discount")),
	}
	if o.Status == "" {
		o.Status = "completed"
	}
	if o.FreeShipping {
		o.ShippingCharged = 0
	}
	if t := parse.Date(row.Get("date")); t != nil {
		o.OrderDate = *t
	} else {
		im.logger.Warn("order row has unparseable date", slog.String("order_number", number))
	}
	return o
}

// lineFromRow resolves the product by name, creating it when the export sells
// something the products file never declared. A row without a product name or
// positive quantity carries no line (expected for pure shipping rows).
func (im *Importer) lineFromRow(ctx context.Context, number string, row Row) (orders.IngestLine, bool, error) {
	name := strings.TrimSpace(row.Get("product"))
	qty := parse.Int(row.Get("quantity"))
	if name == "" || qty <= 0 {
		return orders.IngestLine{}, false, nil
	}

	p, err := im.products.GetByName(ctx, name)
	if err != nil {
		id, upErr := im.products.UpsertByName(ctx, catalog.Product{Name: name, StockStatus: catalog.StockOut})
		if upErr != nil {
			return orders.IngestLine{}, false, upErr
		}
		im.logger.Info("created product from order row", slog.String("name", name))
		p = &catalog.Product{ID: id, Name: name}
	}

	price := parse.Money(row.Get("price_per_unit"))
	if strings.TrimSpace(row.Get("price_per_unit")) == "" {
		if tierPrice, found, err := im.products.TierPrice(ctx, p.ID, qty); err != nil {
			return orders.IngestLine{}, false, err
		} else if found {
			price = tierPrice
		} else {
			price = p.RetailPrice
		}
	}

	line := orders.IngestLine{
		ProductID:    p.ID,
		LineUID:      lineUID(number, name, qty, price),
		Quantity:     qty,
		PricePerUnit: price,
	}
	if raw := strings.TrimSpace(row.Get("cost_per_unit")); raw != "" {
		cost := parse.Money(raw)
		line.CostPerUnit = &cost
	}
	return line, true, nil
}

func (im *Importer) importExpenses(ctx context.Context, f *CSVFile) (FileResult, error) {
	result := FileResult{File: FileExpenses}
	for {
		row, ok, err := f.Next()
		if err != nil {
			return result, err
		}
		if !ok {
			break
		}
		result.Rows++

		category := strings.TrimSpace(row.Get("category"))
		date := parse.Date(row.Get("date"))
		if category == "" || date == nil {
			result.Skipped++
			continue
		}
		e := expenses.Expense{
			ExpenseDate: *date,
			Category:    category,
			Description: strings.TrimSpace(row.Get("description")),
			Amount:      parse.Money(row.Get("amount")),
		}
		if raw := strings.TrimSpace(row.Get("order_number")); raw != "" {
			number := orders.CanonicalNumber(raw)
			e.OrderNumber = &number
		}
		inserted, err := im.expenses.ImportRow(ctx, e)
		if err != nil {
			result.Errors++
			im.logger.Error("expense import failed", slog.String("category", category), slog.Any("error", err))
			continue
		}
		if inserted {
			result.Imported++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func recomputeSubtotal(in *orders.Ingest) {
	var subtotal float64
	for _, line := range in.Lines {
		subtotal += float64(line.Quantity) * line.PricePerUnit
	}
	in.Order.Subtotal = subtotal
}

// lineUID derives the stable line identity for flat-file rows from the four
// columns that identified a line in the export.
func lineUID(orderNumber, productName string, qty int, price float64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%.2f", orderNumber, productName, qty, price)))
	return "csv-" + hex.EncodeToString(sum[:8])
}
