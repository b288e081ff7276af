package orders

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	byNumber map[string]*Order
}

func newMemoryRepo(numbers ...string) *memoryRepo {
	r := &memoryRepo{byNumber: make(map[string]*Order)}
	for i, n := range numbers {
		r.byNumber[n] = &Order{ID: int64(i + 1), OrderNumber: n, OrderDate: time.Now()}
	}
	return r
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) GetByNumber(_ context.Context, orderNumber string) (*Order, error) {
	if o, ok := r.byNumber[orderNumber]; ok {
		return o, nil
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) SearchByNumberFragment(_ context.Context, fragment string) ([]Order, error) {
	var out []Order
	for _, o := range r.byNumber {
		if strings.Contains(o.OrderNumber, fragment) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].OrderNumber) != len(out[j].OrderNumber) {
			return len(out[i].OrderNumber) < len(out[j].OrderNumber)
		}
		return out[i].OrderNumber < out[j].OrderNumber
	})
	return out, nil
}

func (r *memoryRepo) Upsert(_ context.Context, o Order) (int64, error) {
	stored := o
	if existing, ok := r.byNumber[o.OrderNumber]; ok {
		stored.ID = existing.ID
	} else {
		stored.ID = int64(len(r.byNumber) + 1)
	}
	r.byNumber[o.OrderNumber] = &stored
	return stored.ID, nil
}

func (r *memoryRepo) UpsertLine(context.Context, Line) error { return nil }

func (r *memoryRepo) DeleteLinesNotIn(context.Context, int64, []string) error { return nil }

func (r *memoryRepo) UpdateStatus(_ context.Context, orderNumber, status string) error {
	o, ok := r.byNumber[orderNumber]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (r *memoryRepo) UpdateShipping(_ context.Context, orderNumber string, shippingCost, absorbed, profit float64) error {
	o, ok := r.byNumber[orderNumber]
	if !ok {
		return ErrNotFound
	}
	o.ShippingCost = shippingCost
	o.ShippingCostAbsorbed = absorbed
	o.Profit = profit
	return nil
}

func (r *memoryRepo) ExistingWooIDs(context.Context) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})
	for _, o := range r.byNumber {
		if o.WooOrderID != nil {
			ids[*o.WooOrderID] = struct{}{}
		}
	}
	return ids, nil
}

func (r *memoryRepo) List(context.Context, ListRequest) ([]Order, int, error) {
	var out []Order
	for _, o := range r.byNumber {
		out = append(out, *o)
	}
	return out, len(out), nil
}

func TestResolveExact(t *testing.T) {
	repo := newMemoryRepo("Order #1791")
	res := NewResolver(repo, nil)

	o, err := res.Resolve(context.Background(), "Order #1791")
	require.NoError(t, err)
	require.Equal(t, "Order #1791", o.OrderNumber)
}

func TestResolveURLEncoded(t *testing.T) {
	repo := newMemoryRepo("Order #1791")
	res := NewResolver(repo, nil)

	o, err := res.Resolve(context.Background(), "Order%20%231791")
	require.NoError(t, err)
	require.Equal(t, "Order #1791", o.OrderNumber)
}

func TestResolvePlusEncoded(t *testing.T) {
	repo := newMemoryRepo("Order 442")
	res := NewResolver(repo, nil)

	o, err := res.Resolve(context.Background(), "Order+442")
	require.NoError(t, err)
	require.Equal(t, "Order 442", o.OrderNumber)
}

func TestResolveNumericFallback(t *testing.T) {
	repo := newMemoryRepo("Order #1791", "Order #17915")
	res := NewResolver(repo, nil)

	o, err := res.Resolve(context.Background(), "invoice 1791 copy")
	require.NoError(t, err)
	// Both stored numbers contain "1791"; the shorter one is more specific.
	require.Equal(t, "Order #1791", o.OrderNumber)
}

func TestResolveMiss(t *testing.T) {
	repo := newMemoryRepo("Order #1")
	res := NewResolver(repo, nil)

	_, err := res.Resolve(context.Background(), "no digits here")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = res.Resolve(context.Background(), "")
	require.ErrorIs(t, err, ErrNotFound)
}
