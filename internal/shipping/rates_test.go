package shipping

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleRates() []Rate {
	return []Rate{
		{ObjectID: "a", Provider: "USPS", Amount: "7.50", Currency: "USD", EstimatedDays: 5},
		{ObjectID: "b", Provider: "UPS", Amount: "12.00", Currency: "USD", EstimatedDays: 2},
		{ObjectID: "c", Provider: "DHL", Amount: "6.10", Currency: "EUR", EstimatedDays: 4},
	}
}

func TestCheapestRatePrefersRequestedCurrency(t *testing.T) {
	rate, ok := CheapestRate(sampleRates(), "USD")
	require.True(t, ok)
	// The EUR rate is numerically cheaper but not in the requested currency.
	require.Equal(t, "a", rate.ObjectID)
}

func TestCheapestRateFallsBackToAnyCurrency(t *testing.T) {
	rates := []Rate{
		{ObjectID: "c", Amount: "6.10", Currency: "EUR"},
		{ObjectID: "d", Amount: "9.00", Currency: "GBP"},
	}
	rate, ok := CheapestRate(rates, "USD")
	require.True(t, ok)
	require.Equal(t, "c", rate.ObjectID)
}

func TestCheapestRateEmpty(t *testing.T) {
	_, ok := CheapestRate(nil, "USD")
	require.False(t, ok)
}

func TestFastestRateWithCostTieBreak(t *testing.T) {
	rates := []Rate{
		{ObjectID: "a", Amount: "12.00", Currency: "USD", EstimatedDays: 2},
		{ObjectID: "b", Amount: "10.00", Currency: "USD", EstimatedDays: 2},
		{ObjectID: "c", Amount: "5.00", Currency: "USD", EstimatedDays: 6},
	}
	rate, ok := FastestRate(rates, "USD")
	require.True(t, ok)
	require.Equal(t, "b", rate.ObjectID)
}

func TestFastestRateUnestimatedSortsLast(t *testing.T) {
	rates := []Rate{
		{ObjectID: "a", Amount: "3.00", Currency: "USD"},
		{ObjectID: "b", Amount: "10.00", Currency: "USD", EstimatedDays: 3},
	}
	rate, ok := FastestRate(rates, "USD")
	require.True(t, ok)
	require.Equal(t, "b", rate.ObjectID)
}
