package parse

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMoney(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"$1,234.56", 1234.56},
		{"1234.56", 1234.56},
		{"$0.99", 0.99},
		{"  $12.00 ", 12},
		{"", 0},
		{"n/a", 0},
		{"$", 0},
		{"--", 0},
	}
	for _, tc := range cases {
		require.InDelta(t, tc.want, Money(tc.in), 1e-9, "Money(%q)", tc.in)
	}
}

func TestPercent(t *testing.T) {
	require.InDelta(t, 12.5, Percent("12.5%"), 1e-9)
	require.InDelta(t, 100, Percent("100"), 1e-9)
	require.InDelta(t, 0, Percent("abc"), 1e-9)
	require.InDelta(t, 0, Percent(""), 1e-9)
}

func TestBool(t *testing.T) {
	require.True(t, Bool("yes"))
	require.True(t, Bool("YES"))
	require.True(t, Bool(" Yes "))
	require.False(t, Bool("no"))
	require.False(t, Bool("true"))
	require.False(t, Bool(""))
}

func TestInt(t *testing.T) {
	require.Equal(t, 42, Int("42"))
	require.Equal(t, 3, Int("3.9"))
	require.Equal(t, -2, Int("-2"))
	require.Equal(t, 0, Int("x"))
	require.Equal(t, 0, Int(""))
}

func TestDate(t *testing.T) {
	got := Date("2024-03-15")
	require.NotNil(t, got)
	require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *got)

	got = Date("2024-03-15 2:30 PM")
	require.NotNil(t, got)
	require.Equal(t, 14, got.Hour())
	require.Equal(t, 30, got.Minute())

	got = Date("2024-03-15T10:00:00Z")
	require.NotNil(t, got)

	require.Nil(t, Date("not a date"))
	require.Nil(t, Date(""))
}

func TestMoneyRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 0.01, 12.34, 1234.56, 99999.99} {
		s := "$" + strconv.FormatFloat(v, 'f', 2, 64)
		require.InDelta(t, v, Money(s), 1e-9, "round trip %q", s)
	}
}
