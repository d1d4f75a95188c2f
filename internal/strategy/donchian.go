package strategy

import (
	"trader/internal/ledger"
	"trader/internal/order"
)

// donchian enters on breakouts of the N-day range and pyramids into the trend.
type donchian struct {
	pyramid
}

func newDonchian(cfg PyramidConfig) *donchian {
	return &donchian{pyramid: newPyramid(cfg)}
}

func (d *donchian) decide(s *session, mid float64, l *ledger.Ledger) []Intent {
	if s.days <= d.cfg.Window || d.unit <= 0 {
		return nil
	}

	high, low := d.maxHigh(), d.minLow()
	switch d.direction() {
	case 0:
		switch {
		case mid > high:
			return []Intent{{Kind: IntentEntry, Quantity: d.unit, Type: order.TypeLimit, AllOrNone: true}}
		case mid < low:
			return []Intent{{Kind: IntentEntry, Quantity: -d.unit, Type: order.TypeLimit, AllOrNone: true}}
		}
	case 1:
		if mid < low || d.stopBroken(mid) || d.takeProfit(l) {
			return d.exitAll(l, true)
		}
		if d.canAdd() && d.addTriggered(mid) {
			return []Intent{{Kind: IntentAdd, Quantity: d.unit, Type: order.TypeLimit, AllOrNone: true}}
		}
	case -1:
		if mid > high || d.stopBroken(mid) || d.takeProfit(l) {
			return d.exitAll(l, true)
		}
		if d.canAdd() && d.addTriggered(mid) {
			return []Intent{{Kind: IntentAdd, Quantity: -d.unit, Type: order.TypeLimit, AllOrNone: true}}
		}
	}
	return nil
}
