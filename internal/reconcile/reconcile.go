package reconcile

import (
	"math"
	"sort"

	"trader/internal/order"
)

const DefaultRelistInterval = 0.01

// Result is the set of actions that turns the open orders into the desired
// ladder. The three lists never reference the same exchange order twice.
type Result struct {
	Amend  []order.Amend
	Create []order.Order
	Cancel []order.Order
}

// Empty reports whether the book already matches.
func (r Result) Empty() bool {
	return len(r.Amend) == 0 && len(r.Create) == 0 && len(r.Cancel) == 0
}

// Reconciler diffs a desired order ladder against the orders resting on the
// exchange.
type Reconciler struct {
	// RelistInterval is the relative price move that justifies an amend.
	RelistInterval float64
	// QtyTolerance is the quantity difference ignored when pairing.
	QtyTolerance int64
}

func New(relistInterval float64, qtyTolerance int64) Reconciler {
	if relistInterval <= 0 {
		relistInterval = DefaultRelistInterval
	}
	return Reconciler{RelistInterval: relistInterval, QtyTolerance: qtyTolerance}
}

// Reconcile pairs desired and existing orders per side, outside-in.
func (r Reconciler) Reconcile(desired, existing []order.Order) Result {
	var res Result

	wantBuys, wantSells := order.Split(desired)
	haveBuys, haveSells := order.Split(existing)

	r.side(&res, outsideIn(wantBuys, order.SideBuy), outsideIn(haveBuys, order.SideBuy))
	r.side(&res, outsideIn(wantSells, order.SideSell), outsideIn(haveSells, order.SideSell))
	return res
}

func (r Reconciler) side(res *Result, want, have []order.Order) {
	next := 0
	for _, ex := range have {
		if next >= len(want) {
			res.Cancel = append(res.Cancel, ex)
			continue
		}
		d := want[next]
		next++
		if r.changed(d, ex) {
			res.Amend = append(res.Amend, order.Amend{
				ID:        ex.ID,
				Side:      ex.Side,
				Price:     d.Price,
				LeavesQty: d.Quantity,
				From:      ex,
			})
		}
	}
	res.Create = append(res.Create, want[next:]...)
}

func (r Reconciler) changed(desired, existing order.Order) bool {
	diff := desired.Quantity - existing.Remaining()
	if diff < 0 {
		diff = -diff
	}
	if diff > r.QtyTolerance {
		return true
	}
	if existing.Price <= 0 {
		return desired.Price != existing.Price
	}
	return math.Abs(desired.Price/existing.Price-1) > r.RelistInterval
}

// outsideIn returns a copy sorted from the farthest price to the touch:
// buys ascending, sells descending.
func outsideIn(orders []order.Order, side order.Side) []order.Order {
	out := make([]order.Order, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool {
		if side == order.SideBuy {
			return out[i].Price < out[j].Price
		}
		return out[i].Price > out[j].Price
	})
	return out
}
