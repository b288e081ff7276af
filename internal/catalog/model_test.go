package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStockStatus(t *testing.T) {
	cases := []struct {
		in   string
		want StockStatus
	}{
		{"instock", StockIn},
		{"InStock", StockIn},
		{"IN STOCK", StockIn},
		{"lowstock", StockLow},
		{"Low Stock", StockLow},
		{"onbackorder", StockLow},
		{"outofstock", StockOut},
		{"", StockOut},
		{"whatever", StockOut},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizeStockStatus(tc.in), "input %q", tc.in)
	}
}

func TestPlaceholderName(t *testing.T) {
	require.Equal(t, "Product 9041", PlaceholderName(9041))
}
