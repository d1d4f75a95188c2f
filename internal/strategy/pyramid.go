package strategy

import (
	"math"

	"trader/internal/ledger"
	"trader/internal/order"
	"trader/pkg/ring"
)

// pyramid holds the position-building state shared by the Donchian and moving
// average variants. level is signed and bounded by AddLimit; addPrices[k] is
// the trigger for the (k+2)-th unit.
type pyramid struct {
	cfg       PyramidConfig
	level     int
	addPrices []float64
	highs     *ring.Float
	lows      *ring.Float
	atr       float64
	unit      int64
}

func newPyramid(cfg PyramidConfig) pyramid {
	return pyramid{
		cfg:       cfg,
		addPrices: make([]float64, cfg.AddLimit),
		highs:     ring.NewFloat(cfg.Window),
		lows:      ring.NewFloat(cfg.Window),
	}
}

// roll pushes the finished day's range and resizes the unit.
func (p *pyramid) roll(s *session, equityBase float64) {
	p.highs.Push(s.prevHigh)
	p.lows.Push(s.prevLow)

	var sum float64
	for i := 0; i < p.highs.Len(); i++ {
		sum += p.highs.At(i) - p.lows.At(i)
	}
	if n := p.highs.Len(); n > 0 {
		p.atr = sum / float64(n)
	}

	price := s.prevClose
	if p.atr > 0 && price > 0 {
		p.unit = int64(math.Abs(p.cfg.UnitFraction * equityBase * price * (price + p.atr) / p.atr))
	}
}

func (p *pyramid) maxHigh() float64 { return p.highs.Max() }

func (p *pyramid) minLow() float64 { return p.lows.Min() }

func (p *pyramid) direction() int {
	switch {
	case p.level > 0:
		return 1
	case p.level < 0:
		return -1
	default:
		return 0
	}
}

// lastTrigger returns the trigger of the latest filled level.
func (p *pyramid) lastTrigger() float64 {
	n := p.level
	if n < 0 {
		n = -n
	}
	if n == 0 {
		return 0
	}
	return p.addPrices[n-1]
}

func (p *pyramid) canAdd() bool {
	n := p.level
	if n < 0 {
		n = -n
	}
	return n > 0 && n < p.cfg.AddLimit
}

// stopBroken reports a StopATR move against the last trigger.
func (p *pyramid) stopBroken(mid float64) bool {
	distance := p.cfg.StopATR * p.atr
	switch p.direction() {
	case 1:
		return mid < p.lastTrigger()-distance
	case -1:
		return mid > p.lastTrigger()+distance
	default:
		return false
	}
}

// addTriggered reports that price crossed the next add-on trigger.
func (p *pyramid) addTriggered(mid float64) bool {
	switch p.direction() {
	case 1:
		return mid > p.lastTrigger()
	case -1:
		return mid < p.lastTrigger()
	default:
		return false
	}
}

func (p *pyramid) takeProfit(l *ledger.Ledger) bool {
	return p.cfg.TakeProfitPct > 0 && l.UnrealizedBenefitPct() >= p.cfg.TakeProfitPct
}

func (p *pyramid) exitAll(l *ledger.Ledger, allOrNone bool) []Intent {
	qty := -l.Quantity()
	if qty == 0 {
		p.level = 0
		return nil
	}
	return []Intent{{Kind: IntentExit, Quantity: qty, Type: order.TypeLimit, AllOrNone: allOrNone}}
}

// fill advances the level after an entry, add or exit executed at price.
func (p *pyramid) fill(intent Intent, price float64, l *ledger.Ledger) {
	step := p.cfg.AddStepATR * p.atr
	sign := 1.0
	if intent.Quantity < 0 {
		sign = -1
	}

	switch intent.Kind {
	case IntentEntry:
		p.addPrices[0] = price + sign*step
		p.level = int(sign)
	case IntentAdd:
		n := p.level
		if n < 0 {
			n = -n
		}
		if n == 0 || n >= p.cfg.AddLimit {
			return
		}
		p.addPrices[n] = p.addPrices[n-1] + sign*step
		p.level += int(sign)
	case IntentExit, IntentStopLoss:
		p.level = 0
	}
	if l.Quantity() == 0 {
		p.level = 0
	}
}
