package strategy

import (
	"trader/internal/ledger"
	"trader/internal/order"
	"trader/pkg/ring"
)

// movingAverage follows the daily close SMA with the pyramid skeleton. Adds
// are clamped to equity-based position limits recomputed each day; the entry
// is a full unit.
type movingAverage struct {
	pyramid
	maCfg  MovingAverageConfig
	closes *ring.Float
	upper  int64
	lower  int64
}

func newMovingAverage(pc PyramidConfig, cfg MovingAverageConfig) *movingAverage {
	return &movingAverage{
		pyramid: newPyramid(pc),
		maCfg:   cfg,
		closes:  ring.NewFloat(cfg.Period),
	}
}

// start seeds the average with the start price.
func (m *movingAverage) start(price float64) {
	m.closes.Fill(price)
}

func (m *movingAverage) roll(s *session, l *ledger.Ledger) {
	m.pyramid.roll(s, l.EquityBase())
	m.closes.Push(s.prevClose)

	if equity := l.EquityWithUnrealized(); equity > 0 {
		m.upper = int64(equity * s.prevClose * m.maCfg.LongLimitMultiple)
		m.lower = -int64(equity * s.prevClose * m.maCfg.ShortLimitMultiple)
	}
}

func (m *movingAverage) average() float64 { return m.closes.Mean() }

// decide runs once per day, on the first accepted tick of a new day.
func (m *movingAverage) decide(s *session, mid float64, l *ledger.Ledger) []Intent {
	if s.days <= m.maCfg.Period || m.unit <= 0 {
		return nil
	}

	ma := m.average()
	switch m.direction() {
	case 0:
		switch {
		case mid > ma:
			return []Intent{{Kind: IntentEntry, Quantity: m.unit, Type: order.TypeLimit}}
		case mid < ma:
			return []Intent{{Kind: IntentEntry, Quantity: -m.unit, Type: order.TypeLimit}}
		}
	case 1:
		if mid < ma || m.stopBroken(mid) || m.takeProfit(l) {
			return m.exitAll(l, false)
		}
		if m.canAdd() && m.addTriggered(mid) {
			return m.clamped(IntentAdd, m.unit, l)
		}
	case -1:
		if mid > ma || m.stopBroken(mid) || m.takeProfit(l) {
			return m.exitAll(l, false)
		}
		if m.canAdd() && m.addTriggered(mid) {
			return m.clamped(IntentAdd, -m.unit, l)
		}
	}
	return nil
}

// clamped trims qty so the position stays within [lower, upper].
func (m *movingAverage) clamped(kind IntentKind, qty int64, l *ledger.Ledger) []Intent {
	pos := l.Quantity()
	if qty > 0 {
		if pos >= m.upper {
			return nil
		}
		qty = min(qty, m.upper-pos)
	} else {
		if pos <= m.lower {
			return nil
		}
		qty = -min(-qty, pos-m.lower)
	}
	if qty == 0 {
		return nil
	}
	return []Intent{{Kind: kind, Quantity: qty, Type: order.TypeLimit}}
}
