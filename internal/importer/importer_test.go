package importer

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplytics/shoplytics/internal/catalog"
	"github.com/shoplytics/shoplytics/internal/coupons"
	"github.com/shoplytics/shoplytics/internal/expenses"
	"github.com/shoplytics/shoplytics/internal/orders"
)

type fakeProducts struct {
	byName map[string]*catalog.Product
	tiers  map[int64][]catalog.PriceTier
	nextID int64
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{byName: map[string]*catalog.Product{}, tiers: map[int64][]catalog.PriceTier{}}
}

func (f *fakeProducts) GetByName(_ context.Context, name string) (*catalog.Product, error) {
	if p, ok := f.byName[name]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeProducts) UpsertByName(_ context.Context, p catalog.Product) (int64, error) {
	if existing, ok := f.byName[p.Name]; ok {
		p.ID = existing.ID
	} else {
		f.nextID++
		p.ID = f.nextID
	}
	stored := p
	f.byName[p.Name] = &stored
	return p.ID, nil
}

func (f *fakeProducts) UpsertPriceTier(_ context.Context, tier catalog.PriceTier) error {
	f.tiers[tier.ProductID] = append(f.tiers[tier.ProductID], tier)
	return nil
}

func (f *fakeProducts) TierPrice(_ context.Context, productID int64, qty int) (float64, bool, error) {
	best := catalog.PriceTier{MinQty: -1}
	for _, t := range f.tiers[productID] {
		if t.MinQty <= qty && t.MinQty > best.MinQty {
			best = t
		}
	}
	if best.MinQty < 0 {
		return 0, false, nil
	}
	return best.Price, true, nil
}

type fakeCoupons struct {
	upserted []coupons.Coupon
}

func (f *fakeCoupons) Upsert(_ context.Context, c coupons.Coupon) error {
	f.upserted = append(f.upserted, c)
	return nil
}

type fakeExpenses struct {
	rows []expenses.Expense
}

func (f *fakeExpenses) ImportRow(_ context.Context, e expenses.Expense) (bool, error) {
	for _, existing := range f.rows {
		if existing.Category == e.Category && existing.Amount == e.Amount &&
			existing.Description == e.Description && existing.ExpenseDate.Equal(e.ExpenseDate) {
			return false, nil
		}
	}
	f.rows = append(f.rows, e)
	return true, nil
}

type fakeIngestor struct {
	got []orders.Ingest
}

func (f *fakeIngestor) IngestOrder(_ context.Context, in orders.Ingest) (string, error) {
	f.got = append(f.got, in)
	return in.Order.OrderNumber, nil
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func newTestImporter(products *fakeProducts, cps *fakeCoupons, exps *fakeExpenses, ing *fakeIngestor) *Importer {
	return New(products, cps, exps, ing, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRunImportsAllFilesInOrder(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		FileProducts: "Name,SKU,Cost,Retail Price,Stock,Stock Status\n" +
			"Widget,W-1,$20.00,50.00,10,In Stock\n" +
			"Gadget,G-1,5.00,12.00,0,Out of Stock\n",
		FileTieredPricing: "Product,Min Qty,Price\n" +
			"Widget,5,45.00\n",
		FileCoupons: "Code,Type,Value\n" +
			"SAVE10,percent,10\n",
		FileOrders: "Order Number,Status,Customer,Email,Date,Product,Quantity,Price Per Unit,Cost Per Unit,Shipping,Free Shipping,Coupon,Coupon Discount\n" +
			"1791,Completed,Ada Lovelace,ada@example.com,2026-03-01,Widget,2,50.00,20.00,10.00,No,SAVE10,10.00\n" +
			"1791,Completed,Ada Lovelace,ada@example.com,2026-03-01,Gadget,1,12.00,5.00,10.00,No,SAVE10,10.00\n" +
			"Order #1792,Processing,Grace Hopper,grace@example.com,2026-03-02,Widget,1,50.00,,0,Yes,,\n",
		FileExpenses: "Date,Category,Description,Amount,Order Number\n" +
			"2026-03-01,Rent,Warehouse,\"$1,200.00\",\n" +
			"2026-03-01,Shipping,Carrier cost,15.00,1791\n",
	})

	products := newFakeProducts()
	cps := &fakeCoupons{}
	exps := &fakeExpenses{}
	ing := &fakeIngestor{}
	im := newTestImporter(products, cps, exps, ing)

	results, err := im.Run(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, FileResult{File: FileProducts, Rows: 2, Imported: 2}, results[0])
	assert.Equal(t, FileResult{File: FileTieredPricing, Rows: 1, Imported: 1}, results[1])
	assert.Equal(t, FileResult{File: FileCoupons, Rows: 1, Imported: 1}, results[2])
	assert.Equal(t, FileResult{File: FileOrders, Rows: 3, Imported: 2}, results[3])
	assert.Equal(t, FileResult{File: FileExpenses, Rows: 2, Imported: 2}, results[4])

	widget, err := products.GetByName(context.Background(), "Widget")
	require.NoError(t, err)
	assert.InDelta(t, 20, widget.Cost, 0.001)
	assert.Equal(t, catalog.StockIn, widget.StockStatus)

	require.Len(t, cps.upserted, 1)
	assert.Equal(t, "SAVE10", cps.upserted[0].Code)

	require.Len(t, ing.got, 2)
	first := ing.got[0]
	assert.Equal(t, "Order #1791", first.Order.OrderNumber)
	assert.Equal(t, "completed", first.Order.Status)
	require.Len(t, first.Lines, 2)
	assert.InDelta(t, 112, first.Order.Subtotal, 0.001)
	require.NotNil(t, first.Lines[0].CostPerUnit)
	assert.InDelta(t, 20, *first.Lines[0].CostPerUnit, 0.001)

	second := ing.got[1]
	assert.Equal(t, "Order #1792", second.Order.OrderNumber)
	assert.True(t, second.Order.FreeShipping)
	assert.Zero(t, second.Order.ShippingCharged)
	require.Len(t, second.Lines, 1)
	assert.Nil(t, second.Lines[0].CostPerUnit)

	require.Len(t, exps.rows, 2)
	require.NotNil(t, exps.rows[1].OrderNumber)
	assert.Equal(t, "Order #1791", *exps.rows[1].OrderNumber)
}

func TestOrderRowFallsBackToTierPrice(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		FileProducts: "Name,SKU,Cost,Retail Price,Stock,Stock Status\n" +
			"Widget,W-1,20.00,50.00,10,In Stock\n",
		FileTieredPricing: "Product,Min Qty,Price\n" +
			"Widget,5,45.00\n",
		FileOrders: "Order Number,Status,Customer,Email,Date,Product,Quantity,Price Per Unit,Cost Per Unit,Shipping,Free Shipping,Coupon,Coupon Discount\n" +
			"2001,Completed,,,2026-03-01,Widget,6,,,0,Yes,,\n" +
			"2002,Completed,,,2026-03-01,Widget,2,,,0,Yes,,\n",
	})

	ing := &fakeIngestor{}
	im := newTestImporter(newFakeProducts(), &fakeCoupons{}, &fakeExpenses{}, ing)

	_, err := im.Run(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, ing.got, 2)

	// Six units hit the quantity break, two fall back to retail price.
	assert.InDelta(t, 45, ing.got[0].Lines[0].PricePerUnit, 0.001)
	assert.InDelta(t, 50, ing.got[1].Lines[0].PricePerUnit, 0.001)
}

func TestRunSkipsMissingFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		FileProducts: "Name,SKU,Cost,Retail Price,Stock,Stock Status\n" +
			"Widget,W-1,20.00,50.00,10,In Stock\n",
	})

	im := newTestImporter(newFakeProducts(), &fakeCoupons{}, &fakeExpenses{}, &fakeIngestor{})
	results, err := im.Run(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, FileProducts, results[0].File)
}

func TestOrderRowCreatesUnknownProduct(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		FileOrders: "Order Number,Status,Customer,Email,Date,Product,Quantity,Price Per Unit,Cost Per Unit,Shipping,Free Shipping,Coupon,Coupon Discount\n" +
			"3001,Completed,,,2026-03-01,Mystery Box,1,9.99,,0,Yes,,\n",
	})

	products := newFakeProducts()
	ing := &fakeIngestor{}
	im := newTestImporter(products, &fakeCoupons{}, &fakeExpenses{}, ing)

	_, err := im.Run(context.Background(), dir)
	require.NoError(t, err)

	created, err := products.GetByName(context.Background(), "Mystery Box")
	require.NoError(t, err)
	require.Len(t, ing.got, 1)
	assert.Equal(t, created.ID, ing.got[0].Lines[0].ProductID)
}

func TestLineUIDIsDeterministic(t *testing.T) {
	a := lineUID("Order #1791", "Widget", 2, 50)
	b := lineUID("Order #1791", "Widget", 2, 50)
	c := lineUID("Order #1791", "Widget", 3, 50)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestReimportIsIdempotentForExpenses(t *testing.T) {
	files := map[string]string{
		FileExpenses: "Date,Category,Description,Amount,Order Number\n" +
			"2026-03-01,Rent,Warehouse,1200.00,\n",
	}
	dir := writeFiles(t, files)

	exps := &fakeExpenses{}
	im := newTestImporter(newFakeProducts(), &fakeCoupons{}, exps, &fakeIngestor{})

	first, err := im.Run(context.Background(), dir)
	require.NoError(t, err)
	second, err := im.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, first[0].Imported)
	assert.Equal(t, 1, second[0].Skipped)
	assert.Len(t, exps.rows, 1)
}
