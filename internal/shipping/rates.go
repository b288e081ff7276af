package shipping

import (
	"sort"
	"strings"

	"github.com/shoplytics/shoplytics/internal/parse"
)

// CheapestRate picks the lowest-cost rate in the requested currency, falling
// back to the lowest-cost rate in any currency when none match. Returns false
// when the shipment has no rates at all.
func CheapestRate(rates []Rate, currency string) (Rate, bool) {
	if len(rates) == 0 {
		return Rate{}, false
	}
	matching := filterCurrency(rates, currency)
	if len(matching) == 0 {
		matching = append([]Rate(nil), rates...)
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return parse.Money(matching[i].Amount) < parse.Money(matching[j].Amount)
	})
	return matching[0], true
}

// FastestRate picks the rate with the fewest estimated days, breaking ties on
// cost. Rates without an estimate sort last.
func FastestRate(rates []Rate, currency string) (Rate, bool) {
	if len(rates) == 0 {
		return Rate{}, false
	}
	matching := filterCurrency(rates, currency)
	if len(matching) == 0 {
		matching = append([]Rate(nil), rates...)
	}
	sort.SliceStable(matching, func(i, j int) bool {
		di, dj := days(matching[i]), days(matching[j])
		if di != dj {
			return di < dj
		}
		return parse.Money(matching[i].Amount) < parse.Money(matching[j].Amount)
	})
	return matching[0], true
}

func filterCurrency(rates []Rate, currency string) []Rate {
	var out []Rate
	for _, r := range rates {
		if strings.EqualFold(r.Currency, currency) {
			out = append(out, r)
		}
	}
	return out
}

func days(r Rate) int {
	if r.EstimatedDays <= 0 {
		return int(^uint(0) >> 1)
	}
	return r.EstimatedDays
}
