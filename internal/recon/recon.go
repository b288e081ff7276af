// Package recon recomputes order financials from the spreadsheet export and
// diffs them against the live store, proving the ledger and the database agree.
package recon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/shoplytics/shoplytics/internal/expenses"
	"github.com/shoplytics/shoplytics/internal/finance"
	"github.com/shoplytics/shoplytics/internal/importer"
	"github.com/shoplytics/shoplytics/internal/metrics"
	"github.com/shoplytics/shoplytics/internal/orders"
	"github.com/shoplytics/shoplytics/internal/parse"
)

// Tolerances for a match. Counts must agree exactly.
const (
	CurrencyTolerance = 0.01
	PercentTolerance  = 0.01
)

var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// OrderSource reads live orders.
type OrderSource interface {
	GetByNumber(ctx context.Context, orderNumber string) (*orders.Order, error)
}

// AggregateSource reads live aggregate totals.
type AggregateSource interface {
	OrderTotals(ctx context.Context, w metrics.Window) (metrics.OrderTotals, error)
}

// ExpenseSource reads live expense rows.
type ExpenseSource interface {
	List(ctx context.Context, from, to time.Time) ([]expenses.Expense, error)
}

// Finding is one reconciliation breach.
type Finding struct {
	Scope  string
	Detail string
}

// Report is the outcome of one reconciliation run.
type Report struct {
	OrdersChecked int
	Findings      []Finding
}

// Clean reports whether every check passed.
func (r *Report) Clean() bool {
	return len(r.Findings) == 0
}

// Render writes the human readable report.
func (r *Report) Render(w io.Writer) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "reconciled %d orders\n", r.OrdersChecked)
	if r.Clean() {
		p.Fprintf(w, "OK: ledger and store agree\n")
		return
	}
	p.Fprintf(w, "FAIL: %d finding(s)\n", len(r.Findings))
	for _, f := range r.Findings {
		p.Fprintf(w, "  [%s] %s\n", f.Scope, f.Detail)
	}
}

// Reconciler runs the checks.
type Reconciler struct {
	orders     OrderSource
	aggregates AggregateSource
	expenses   ExpenseSource
	logger     *slog.Logger
	printer    *message.Printer
}

// New constructs a Reconciler.
func New(orderSource OrderSource, aggregates AggregateSource, expenseRepo ExpenseSource, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		orders:     orderSource,
		aggregates: aggregates,
		expenses:   expenseRepo,
		logger:     logger,
		printer:    message.NewPrinter(language.English),
	}
}

// expectedOrder is the ledger-side recomputation of one order. The export
// carries no carrier costs, so shipping absorption is compared separately.
type expectedOrder struct {
	number   string
	status   string
	totals   finance.OrderTotals
	excluded bool
}

// Run loads the export from dir, recomputes every figure and diffs against
// the live store.
func (r *Reconciler) Run(ctx context.Context, dir string) (*Report, error) {
	ledger, err := loadLedger(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	var expRevenue, expProfit, liveProfit float64
	var expCount int

	for _, exp := range ledger.orders {
		if exp.excluded {
			continue
		}
		expCount++
		expRevenue += exp.totals.Total
		expProfit += exp.totals.Total - exp.totals.Cost

		live, err := r.orders.GetByNumber(ctx, exp.number)
		if errors.Is(err, orders.ErrNotFound) {
			report.Findings = append(report.Findings, Finding{
				Scope:  exp.number,
				Detail: "order in export but not in store",
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("recon: load order %s: %w", exp.number, err)
		}
		report.OrdersChecked++
		liveProfit += live.Profit + live.ShippingCostAbsorbed
		r.diffOrder(report, exp, live)
	}

	if err := r.diffAggregates(ctx, report, expRevenue, expProfit, liveProfit, expCount); err != nil {
		return nil, err
	}
	if err := r.diffExpenses(ctx, report, ledger.expenseTotal); err != nil {
		return nil, err
	}

	r.logger.Info("reconciliation complete",
		slog.Int("orders_checked", report.OrdersChecked),
		slog.Int("findings", len(report.Findings)))
	return report, nil
}

func (r *Reconciler) diffOrder(report *Report, exp expectedOrder, live *orders.Order) {
	r.checkAmount(report, exp.number, "total", exp.totals.Total, live.Total)
	r.checkAmount(report, exp.number, "product cost", exp.totals.Cost, live.ProductCost)

	// Carrier costs arrive after the export, so profit is compared before
	// shipping absorption on both sides.
	expMerch := exp.totals.Total - exp.totals.Cost
	liveMerch := live.Profit + live.ShippingCostAbsorbed
	r.checkAmount(report, exp.number, "merchandise profit", expMerch, liveMerch)

	if !strings.EqualFold(exp.status, live.Status) {
		report.Findings = append(report.Findings, Finding{
			Scope:  exp.number,
			Detail: fmt.Sprintf("status mismatch: export %q store %q", exp.status, live.Status),
		})
	}
}

// diffAggregates checks the store-wide totals. Margins on both sides are
// computed before shipping absorption so carrier costs written after the
// export do not register as drift.
func (r *Reconciler) diffAggregates(ctx context.Context, report *Report, revenue, profit, liveProfit float64, count int) error {
	live, err := r.aggregates.OrderTotals(ctx, metrics.Window{})
	if err != nil {
		return fmt.Errorf("recon: load live aggregates: %w", err)
	}
	r.checkAmount(report, "aggregate", "revenue", revenue, live.Revenue)
	if count != live.Orders {
		report.Findings = append(report.Findings, Finding{
			Scope:  "aggregate",
			Detail: fmt.Sprintf("order count mismatch: export %d store %d", count, live.Orders),
		})
	}

	expMargin := finance.ProfitMargin(revenue, profit)
	liveMargin := finance.ProfitMargin(live.Revenue, liveProfit)
	if diff := expMargin - liveMargin; diff > PercentTolerance || diff < -PercentTolerance {
		report.Findings = append(report.Findings, Finding{
			Scope:  "aggregate",
			Detail: r.printer.Sprintf("margin mismatch: export %.2f%% store %.2f%%", expMargin, liveMargin),
		})
	}
	return nil
}

// diffExpenses compares non-shipping expense totals. Carrier rows are written
// by the live shipping sync and have no counterpart in the export.
func (r *Reconciler) diffExpenses(ctx context.Context, report *Report, expected float64) error {
	all, err := r.expenses.List(ctx, time.Unix(0, 0), farFuture)
	if err != nil {
		return fmt.Errorf("recon: load live expenses: %w", err)
	}
	var live float64
	for _, e := range all {
		if e.Category == expenses.CategoryShipping {
			continue
		}
		live += e.Amount
	}
	r.checkAmount(report, "aggregate", "general expenses", expected, live)
	return nil
}

func (r *Reconciler) checkAmount(report *Report, scope, field string, expected, live float64) {
	diff := expected - live
	if diff <= CurrencyTolerance && diff >= -CurrencyTolerance {
		return
	}
	report.Findings = append(report.Findings, Finding{
		Scope:  scope,
		Detail: r.printer.Sprintf("%s mismatch: export $%.2f store $%.2f (diff $%.2f)", field, expected, live, diff),
	})
}

// ledger is everything recomputed from the export files.
type ledger struct {
	orders       []expectedOrder
	expenseTotal float64
}

type productRule struct {
	cost   float64
	retail float64
	tiers  []tierRule
}

type tierRule struct {
	minQty int
	price  float64
}

func loadLedger(dir string) (*ledger, error) {
	products, err := loadProducts(dir)
	if err != nil {
		return nil, err
	}
	couponRules, err := loadCoupons(dir)
	if err != nil {
		return nil, err
	}
	orderList, err := loadOrders(dir, products, couponRules)
	if err != nil {
		return nil, err
	}
	expenseTotal, err := loadExpenseTotal(dir)
	if err != nil {
		return nil, err
	}
	return &ledger{orders: orderList, expenseTotal: expenseTotal}, nil
}

func loadProducts(dir string) (map[string]*productRule, error) {
	rules := make(map[string]*productRule)

	f, err := importer.OpenCSV(filepath.Join(dir, importer.FileProducts))
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return nil, fmt.Errorf("recon: %s: %w", importer.FileProducts, err)
	}
	defer f.Close()
	for {
		row, ok, err := f.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		name := strings.TrimSpace(row.Get("name"))
		if name == "" {
			continue
		}
		rules[name] = &productRule{
			cost:   parse.Money(row.Get("cost")),
			retail: parse.Money(row.Get("retail_price")),
		}
	}

	tf, err := importer.OpenCSV(filepath.Join(dir, importer.FileTieredPricing))
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return nil, fmt.Errorf("recon: %s: %w", importer.FileTieredPricing, err)
	}
	defer tf.Close()
	for {
		row, ok, err := tf.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rule, found := rules[strings.TrimSpace(row.Get("product"))]
		if !found {
			continue
		}
		rule.tiers = append(rule.tiers, tierRule{
			minQty: parse.Int(row.Get("min_qty")),
			price:  parse.Money(row.Get("price")),
		})
	}
	return rules, nil
}

func loadCoupons(dir string) (map[string]coupon, error) {
	rules := make(map[string]coupon)
	f, err := importer.OpenCSV(filepath.Join(dir, importer.FileCoupons))
	if err != nil {
		if os.IsNotExist(err) {
			return rules, nil
		}
		return nil, fmt.Errorf("recon: %s: %w", importer.FileCoupons, err)
	}
	defer f.Close()
	for {
		row, ok, err := f.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		code := strings.ToUpper(strings.TrimSpace(row.Get("code")))
		if code == "" {
			continue
		}
		kind := finance.DiscountFixed
		if strings.EqualFold(strings.TrimSpace(row.Get("type")), string(finance.DiscountPercent)) {
			kind = finance.DiscountPercent
		}
		rules[code] = coupon{kind: kind, value: parse.Money(row.Get("value"))}
	}
	return rules, nil
}

type coupon struct {
	kind  finance.DiscountType
	value float64
}

type orderAccumulator struct {
	number          string
	status          string
	shippingCharged float64
	freeShipping    bool
	couponCode      string
	couponDiscount  float64
	subtotal        float64
	productCost     float64
}

func loadOrders(dir string, products map[string]*productRule, couponRules map[string]coupon) ([]expectedOrder, error) {
	f, err := importer.OpenCSV(filepath.Join(dir, importer.FileOrders))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("recon: %s: %w", importer.FileOrders, err)
	}
	defer f.Close()

	groups := make(map[string]*orderAccumulator)
	var sequence []string
	for {
		row, ok, err := f.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		rawNumber := strings.TrimSpace(row.Get("order_number"))
		if rawNumber == "" {
			continue
		}
		number := orders.CanonicalNumber(rawNumber)
		acc, seen := groups[number]
		if !seen {
			acc = &orderAccumulator{
				number:          number,
				status:          strings.ToLower(strings.TrimSpace(row.Get("status"))),
				shippingCharged: parse.Money(row.Get("shipping")),
				freeShipping:    parse.Bool(row.Get("free_shipping")),
				couponCode:      strings.ToUpper(strings.TrimSpace(row.Get("coupon"))),
				couponDiscount:  parse.Money(row.Get("coupon_discount")),
			}
			if acc.status == "" {
				acc.status = "completed"
			}
			if acc.freeShipping {
				acc.shippingCharged = 0
			}
			groups[number] = acc
			sequence = append(sequence, number)
		}
		addLine(acc, row, products)
	}

	out := make([]expectedOrder, 0, len(sequence))
	for _, number := range sequence {
		acc := groups[number]
		discount := acc.couponDiscount
		if rule, ok := couponRules[acc.couponCode]; ok {
			discount = finance.CouponDiscount(rule.kind, rule.value, acc.subtotal)
		}
		totals := finance.ComputeOrder(finance.OrderInputs{
			Subtotal:        acc.subtotal,
			ShippingCharged: acc.shippingCharged,
			CouponDiscount:  discount,
			ProductCost:     acc.productCost,
			FreeShipping:    acc.freeShipping,
		})
		out = append(out, expectedOrder{
			number:   acc.number,
			status:   acc.status,
			totals:   totals,
			excluded: orders.IsExcludedStatus(acc.status),
		})
	}
	return out, nil
}

func addLine(acc *orderAccumulator, row importer.Row, products map[string]*productRule) {
	name := strings.TrimSpace(row.Get("product"))
	qty := parse.Int(row.Get("quantity"))
	if name == "" || qty <= 0 {
		return
	}
	rule := products[name]

	price := parse.Money(row.Get("price_per_unit"))
	if strings.TrimSpace(row.Get("price_per_unit")) == "" && rule != nil {
		price = rule.retail
		bestQty := -1
		for _, tier := range rule.tiers {
			if tier.minQty <= qty && tier.minQty > bestQty {
				bestQty = tier.minQty
				price = tier.price
			}
		}
	}

	cost := 0.0
	if raw := strings.TrimSpace(row.Get("cost_per_unit")); raw != "" {
		cost = parse.Money(raw)
	} else if rule != nil {
		cost = rule.cost
	}

	acc.subtotal += float64(qty) * price
	acc.productCost += float64(qty) * cost
}

func loadExpenseTotal(dir string) (float64, error) {
	f, err := importer.OpenCSV(filepath.Join(dir, importer.FileExpenses))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("recon: %s: %w", importer.FileExpenses, err)
	}
	defer f.Close()

	var total float64
	for {
		row, ok, err := f.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			break
		}
		if strings.EqualFold(strings.TrimSpace(row.Get("category")), expenses.CategoryShipping) {
			continue
		}
		total += parse.Money(row.Get("amount"))
	}
	return total, nil
}
