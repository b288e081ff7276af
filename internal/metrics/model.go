package metrics

import (
	"fmt"
	"time"

	"github.com/shoplytics/shoplytics/internal/finance"
)

// Period selects the aggregation window for the KPI summary.
type Period string

const (
	PeriodMonth Period = "month"
	PeriodWeek  Period = "week"
	PeriodAll   Period = "all"
)

// ParsePeriod maps a query value onto a known period, defaulting to month.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case PeriodMonth, PeriodWeek, PeriodAll:
		return Period(s), nil
	case "":
		return PeriodMonth, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Window is a half-open [From, To) aggregation range.
type Window struct {
	From time.Time
	To   time.Time
}

// Windows returns the current window and the comparison window preceding it.
// All-time summaries compare the trailing 30 days against the 30 days before.
func (p Period) Windows(now time.Time) (cur Window, prev Window) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case PeriodWeek:
		weekday := int(today.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := today.AddDate(0, 0, 1-weekday)
		cur = Window{From: start, To: start.AddDate(0, 0, 7)}
		prev = Window{From: start.AddDate(0, 0, -7), To: start}
	case PeriodAll:
		cur = Window{From: time.Time{}, To: today.AddDate(0, 0, 1)}
		prev = Window{From: today.AddDate(0, 0, -60), To: today.AddDate(0, 0, -30)}
	default:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		cur = Window{From: start, To: start.AddDate(0, 1, 0)}
		prev = Window{From: start.AddDate(0, -1, 0), To: start}
	}
	return cur, prev
}

// OrderTotals aggregates completed order financials for a window.
type OrderTotals struct {
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
	Orders  int     `json:"orders"`
}

// Summary is the KPI card for the dashboard, with period-over-period deltas.
type Summary struct {
	Period            Period         `json:"period"`
	Revenue           float64        `json:"revenue"`
	Orders            int            `json:"orders"`
	Profit            float64        `json:"profit"`
	Margin            float64        `json:"margin"`
	AverageOrderValue float64        `json:"average_order_value"`
	Expenses          float64        `json:"expenses"`
	NetProfit         float64        `json:"net_profit"`
	ActiveProducts    int            `json:"active_products"`
	RevenueChange     finance.Change `json:"revenue_change"`
	OrdersChange      finance.Change `json:"orders_change"`
	ProfitChange      finance.Change `json:"profit_change"`
	NetProfitChange   finance.Change `json:"net_profit_change"`
}

// TrendPoint is one zero-filled day in the revenue and expense series.
type TrendPoint struct {
	Day      string  `json:"day"`
	Revenue  float64 `json:"revenue"`
	Profit   float64 `json:"profit"`
	Orders   int     `json:"orders"`
	Expenses float64 `json:"expenses"`
}

// TopProduct ranks a product by revenue over a window.
type TopProduct struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
	Profit    float64 `json:"profit"`
}
