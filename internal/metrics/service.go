package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shoplytics/shoplytics/internal/finance"
)

// Service coordinates aggregate queries with the cache layer.
type Service struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// Invalidate bumps the cache version after a sync or import lands new data.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// GetSummary resolves the KPI card for a period using cache-aware lookups.
func (s *Service) GetSummary(ctx context.Context, period Period) (Summary, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		return s.loadSummary(ctx, period)
	}
	key, err := s.cache.BuildKey(ctx, "kpi", string(period))
	if err != nil {
		return Summary{}, err
	}
	var summary Summary
	if err := s.cache.FetchJSON(ctx, key, &summary, loader); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

func (s *Service) loadSummary(ctx context.Context, period Period) (Summary, error) {
	cur, prev := period.Windows(s.now())

	var (
		curTotals, prevTotals   OrderTotals
		curExpense, prevExpense float64
		activeProducts          int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		curTotals, err = s.repo.OrderTotals(gctx, cur)
		return err
	})
	g.Go(func() (err error) {
		prevTotals, err = s.repo.OrderTotals(gctx, prev)
		return err
	})
	g.Go(func() (err error) {
		curExpense, err = s.repo.ExpenseTotal(gctx, cur)
		return err
	})
	g.Go(func() (err error) {
		prevExpense, err = s.repo.ExpenseTotal(gctx, prev)
		return err
	})
	g.Go(func() (err error) {
		activeProducts, err = s.repo.ActiveProductCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("metrics: load summary: %w", err)
	}

	net := curTotals.Profit - curExpense
	prevNet := prevTotals.Profit - prevExpense
	return Summary{
		Period:            period,
		Revenue:           curTotals.Revenue,
		Orders:            curTotals.Orders,
		Profit:            curTotals.Profit,
		Margin:            finance.ProfitMargin(curTotals.Revenue, curTotals.Profit),
		AverageOrderValue: finance.AverageOrderValue(curTotals.Revenue, curTotals.Orders),
		Expenses:          curExpense,
		NetProfit:         net,
		ActiveProducts:    activeProducts,
		RevenueChange:     finance.PeriodChange(curTotals.Revenue, prevTotals.Revenue),
		OrdersChange:      finance.PeriodChange(float64(curTotals.Orders), float64(prevTotals.Orders)),
		ProfitChange:      finance.PeriodChange(curTotals.Profit, prevTotals.Profit),
		NetProfitChange:   finance.PeriodChange(net, prevNet),
	}, nil
}

// GetTrend returns the zero-filled daily revenue and expense series for the
// trailing number of days, today included.
func (s *Service) GetTrend(ctx context.Context, days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	loader := func(ctx context.Context) (interface{}, error) {
		return s.loadTrend(ctx, days)
	}
	key, err := s.cache.BuildKey(ctx, "trend", strconv.Itoa(days))
	if err != nil {
		return nil, err
	}
	var points []TrendPoint
	if err := s.cache.FetchJSON(ctx, key, &points, loader); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Service) loadTrend(ctx context.Context, days int) ([]TrendPoint, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	w := Window{From: today.AddDate(0, 0, 1-days), To: today.AddDate(0, 0, 1)}

	var (
		byDay    map[string]OrderTotals
		expenses map[string]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		byDay, err = s.repo.DailyOrders(gctx, w)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = s.repo.DailyExpenses(gctx, w)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("metrics: load trend: %w", err)
	}

	points := make([]TrendPoint, 0, days)
	for d := w.From; d.Before(w.To); d = d.AddDate(0, 0, 1) {
		day := d.Format("2006-01-02")
		totals := byDay[day]
		points = append(points, TrendPoint{
			Day:      day,
			Revenue:  totals.Revenue,
			Profit:   totals.Profit,
			Orders:   totals.Orders,
			Expenses: expenses[day],
		})
	}
	return points, nil
}

// GetTopProducts ranks products by revenue over the period window.
func (s *Service) GetTopProducts(ctx context.Context, period Period, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = 10
	}
	loader := func(ctx context.Context) (interface{}, error) {
		cur, _ := period.Windows(s.now())
		return s.repo.TopProducts(ctx, cur, limit)
	}
	key, err := s.cache.BuildKey(ctx, "top", string(period), strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	var products []TopProduct
	if err := s.cache.FetchJSON(ctx, key, &products, loader); err != nil {
		return nil, err
	}
	return products, nil
}
