package reconcile

import (
	"testing"

	"trader/internal/order"

	"github.com/stretchr/testify/assert"
)

func buy(price float64, qty int64) order.Order {
	return order.Order{Side: order.SideBuy, Type: order.TypeLimit, Price: price, Quantity: qty}
}

func sell(price float64, qty int64) order.Order {
	return order.Order{Side: order.SideSell, Type: order.TypeLimit, Price: price, Quantity: qty}
}

func live(id string, o order.Order) order.Order {
	o.ID = id
	o.LeavesQty = o.Quantity
	return o
}

func TestReconcile(t *testing.T) {
	testCases := []struct {
		desc     string
		desired  []order.Order
		existing []order.Order
		amend    []order.Amend
		create   []order.Order
		cancel   []order.Order
	}{
		{
			desc:     "amend only the moved buy",
			desired:  []order.Order{buy(99, 10), buy(98, 10)},
			existing: []order.Order{live("a", buy(99, 10)), live("b", buy(97, 10))},
			amend: []order.Amend{
				{ID: "b", Side: order.SideBuy, Price: 98, LeavesQty: 10, From: live("b", buy(97, 10))},
			},
		},
		{
			desc:     "nothing resting",
			desired:  []order.Order{buy(98, 100), sell(102, 100), buy(99, 200), sell(101, 200)},
			existing: nil,
			create:   []order.Order{buy(98, 100), buy(99, 200), sell(102, 100), sell(101, 200)},
		},
		{
			desc:     "nothing desired",
			desired:  nil,
			existing: []order.Order{live("a", buy(99, 10)), live("b", sell(101, 10))},
			cancel:   []order.Order{live("a", buy(99, 10)), live("b", sell(101, 10))},
		},
		{
			desc:     "small price move is kept",
			desired:  []order.Order{sell(1005, 10)},
			existing: []order.Order{live("s", sell(1000, 10))},
		},
		{
			desc:     "quantity change amends",
			desired:  []order.Order{sell(1000, 20)},
			existing: []order.Order{live("s", sell(1000, 10))},
			amend: []order.Amend{
				{ID: "s", Side: order.SideSell, Price: 1000, LeavesQty: 20, From: live("s", sell(1000, 10))},
			},
		},
		{
			desc:     "extra resting sells cancelled from the inside",
			desired:  []order.Order{sell(110, 10)},
			existing: []order.Order{live("in", sell(101, 10)), live("out", sell(110, 10))},
			cancel:   []order.Order{live("in", sell(101, 10))},
		},
		{
			desc:     "more desired than resting creates the inner ones",
			desired:  []order.Order{buy(90, 10), buy(95, 10), buy(99, 10)},
			existing: []order.Order{live("x", buy(90, 10))},
			create:   []order.Order{buy(95, 10), buy(99, 10)},
		},
	}

	r := New(0, 0)
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			res := r.Reconcile(tc.desired, tc.existing)
			assert.Equal(t, tc.amend, res.Amend)
			assert.Equal(t, tc.create, res.Create)
			assert.Equal(t, tc.cancel, res.Cancel)
			assert.Equal(t, len(tc.amend)+len(tc.create)+len(tc.cancel) == 0, res.Empty())
		})
	}
}

func TestReconcileTolerance(t *testing.T) {
	r := New(0.02, 5)
	res := r.Reconcile(
		[]order.Order{buy(100, 103)},
		[]order.Order{live("a", buy(101.5, 100))},
	)
	assert.True(t, res.Empty())

	res = r.Reconcile(
		[]order.Order{buy(100, 110)},
		[]order.Order{live("a", buy(100, 100))},
	)
	assert.Len(t, res.Amend, 1)
}

func TestReconcileDisjoint(t *testing.T) {
	desired := []order.Order{buy(97, 10), buy(98, 10), sell(103, 10)}
	existing := []order.Order{
		live("a", buy(90, 10)),
		live("b", buy(98, 10)),
		live("c", buy(99, 10)),
		live("d", sell(110, 5)),
	}
	res := New(0, 0).Reconcile(desired, existing)

	seen := map[string]bool{}
	for _, a := range res.Amend {
		assert.False(t, seen[a.ID])
		seen[a.ID] = true
	}
	for _, c := range res.Cancel {
		assert.False(t, seen[c.ID])
		seen[c.ID] = true
	}
	for _, c := range res.Create {
		assert.False(t, c.Live())
	}
	assert.Len(t, res.Cancel, 1)
	assert.Equal(t, "c", res.Cancel[0].ID)
}
