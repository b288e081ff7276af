package metrics

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	totals       map[string]OrderTotals
	expenses     map[string]float64
	active       int
	daily        map[string]OrderTotals
	dailyExpense map[string]float64
	top          []TopProduct

	totalCalls int
	topWindow  Window
	topLimit   int
}

func windowKey(w Window) string {
	return w.From.Format("2006-01-02") + "/" + w.To.Format("2006-01-02")
}

func (m *mockRepo) OrderTotals(ctx context.Context, w Window) (OrderTotals, error) {
	m.totalCalls++
	return m.totals[windowKey(w)], nil
}

func (m *mockRepo) ExpenseTotal(ctx context.Context, w Window) (float64, error) {
	return m.expenses[windowKey(w)], nil
}

func (m *mockRepo) ActiveProductCount(ctx context.Context) (int, error) {
	return m.active, nil
}

func (m *mockRepo) DailyOrders(ctx context.Context, w Window) (map[string]OrderTotals, error) {
	return m.daily, nil
}

func (m *mockRepo) DailyExpenses(ctx context.Context, w Window) (map[string]float64, error) {
	return m.dailyExpense, nil
}

func (m *mockRepo) TopProducts(ctx context.Context, w Window, limit int) ([]TopProduct, error) {
	m.topWindow = w
	m.topLimit = limit
	return m.top, nil
}

func newTestService(t *testing.T, repo Repository, now time.Time) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, NewCache(client, time.Minute))
	svc.now = func() time.Time { return now }
	return svc
}

func TestGetSummaryComputesDeltas(t *testing.T) {
	now := time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		totals: map[string]OrderTotals{
			"2026-03-01/2026-04-01": {Revenue: 4000, Profit: 1000, Orders: 40},
			"2026-02-01/2026-03-01": {Revenue: 2000, Profit: 900, Orders: 20},
		},
		expenses: map[string]float64{
			"2026-03-01/2026-04-01": 300,
			"2026-02-01/2026-03-01": 100,
		},
		active: 7,
	}
	svc := newTestService(t, repo, now)

	summary, err := svc.GetSummary(context.Background(), PeriodMonth)
	require.NoError(t, err)

	assert.InDelta(t, 4000, summary.Revenue, 0.001)
	assert.Equal(t, 40, summary.Orders)
	assert.InDelta(t, 25, summary.Margin, 0.001)
	assert.InDelta(t, 100, summary.AverageOrderValue, 0.001)
	assert.InDelta(t, 300, summary.Expenses, 0.001)
	assert.InDelta(t, 700, summary.NetProfit, 0.001)
	assert.Equal(t, 7, summary.ActiveProducts)
	assert.InDelta(t, 2000, summary.RevenueChange.Value, 0.001)
	assert.InDelta(t, 100, summary.RevenueChange.Percent, 0.001)
	assert.InDelta(t, 100, summary.OrdersChange.Percent, 0.001)
	// Prior month netted 800, this month 700.
	assert.InDelta(t, -100, summary.NetProfitChange.Value, 0.001)
}

func TestGetSummaryCachesUntilInvalidated(t *testing.T) {
	now := time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)
	repo := &mockRepo{}
	svc := newTestService(t, repo, now)
	ctx := context.Background()

	_, err := svc.GetSummary(ctx, PeriodMonth)
	require.NoError(t, err)
	require.Equal(t, 2, repo.totalCalls)

	_, err = svc.GetSummary(ctx, PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.totalCalls, "second read should come from cache")

	require.NoError(t, svc.Invalidate(ctx))

	_, err = svc.GetSummary(ctx, PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, 4, repo.totalCalls, "bump should force a reload")
}

func TestGetTrendZeroFills(t *testing.T) {
	now := time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		daily: map[string]OrderTotals{
			"2026-03-17": {Revenue: 150, Profit: 60, Orders: 2},
		},
		dailyExpense: map[string]float64{
			"2026-03-16": 25,
		},
	}
	svc := newTestService(t, repo, now)

	points, err := svc.GetTrend(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, points, 3)

	assert.Equal(t, "2026-03-16", points[0].Day)
	assert.InDelta(t, 0, points[0].Revenue, 0.001)
	assert.InDelta(t, 25, points[0].Expenses, 0.001)

	assert.Equal(t, "2026-03-17", points[1].Day)
	assert.InDelta(t, 150, points[1].Revenue, 0.001)
	assert.Equal(t, 2, points[1].Orders)

	assert.Equal(t, "2026-03-18", points[2].Day)
	assert.InDelta(t, 0, points[2].Revenue, 0.001)
	assert.InDelta(t, 0, points[2].Expenses, 0.001)
}

func TestGetTopProductsPassesWindowAndLimit(t *testing.T) {
	now := time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)
	repo := &mockRepo{
		top: []TopProduct{{ProductID: 3, Name: "Widget", Quantity: 12, Revenue: 480, Profit: 160}},
	}
	svc := newTestService(t, repo, now)

	products, err := svc.GetTopProducts(context.Background(), PeriodWeek, 5)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget", products[0].Name)
	assert.Equal(t, 5, repo.topLimit)
	assert.Equal(t, "2026-03-16", repo.topWindow.From.Format("2006-01-02"), "week starts Monday")
	assert.Equal(t, "2026-03-23", repo.topWindow.To.Format("2006-01-02"))
}

func TestPeriodWindows(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) // a Sunday

	cur, prev := PeriodMonth.Windows(now)
	assert.Equal(t, "2026-03-01", cur.From.Format("2006-01-02"))
	assert.Equal(t, "2026-04-01", cur.To.Format("2006-01-02"))
	assert.Equal(t, "2026-02-01", prev.From.Format("2006-01-02"))

	cur, prev = PeriodWeek.Windows(now)
	assert.Equal(t, "2026-02-23", cur.From.Format("2006-01-02"))
	assert.Equal(t, "2026-03-02", cur.To.Format("2006-01-02"))
	assert.Equal(t, "2026-02-16", prev.From.Format("2006-01-02"))

	cur, prev = PeriodAll.Windows(now)
	assert.True(t, cur.From.IsZero())
	assert.Equal(t, "2026-03-02", cur.To.Format("2006-01-02"))
	assert.Equal(t, "2026-01-30", prev.To.Format("2006-01-02"))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonth, p)

	p, err = ParsePeriod("week")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, p)

	_, err = ParsePeriod("quarter")
	assert.Error(t, err)
}
