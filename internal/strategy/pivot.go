package strategy

import (
	"trader/internal/ledger"
	"trader/internal/order"
)

// Levels are the R-Breaker trigger prices derived from the previous day.
type Levels struct {
	Pivot     float64 `json:"pivot"`
	BuyBreak  float64 `json:"buyBreak"`
	SellSetup float64 `json:"sellSetup"`
	SellEnter float64 `json:"sellEnter"`
	BuyEnter  float64 `json:"buyEnter"`
	BuySetup  float64 `json:"buySetup"`
	SellBreak float64 `json:"sellBreak"`
}

// ComputeLevels derives the six trigger levels from the previous day's range.
func ComputeLevels(high, low, prevClose float64, cfg PivotConfig) Levels {
	lv := Levels{
		Pivot:     (high + low + prevClose) / 3,
		SellSetup: high + cfg.F1*(prevClose-low),
		BuySetup:  low - cfg.F1*(high-prevClose),
		SellEnter: (1+cfg.F2)/2*(high+low) - cfg.F2*low,
		BuyEnter:  (1+cfg.F2)/2*(high+low) - cfg.F2*high,
	}
	width := lv.SellSetup - lv.BuySetup
	lv.BuyBreak = lv.SellSetup + cfg.F3*width
	lv.SellBreak = lv.BuySetup - cfg.F3*width
	return lv
}

type pivotBreakout struct {
	cfg    PivotConfig
	levels Levels
	ready  bool
}

func newPivotBreakout(cfg PivotConfig) *pivotBreakout {
	return &pivotBreakout{cfg: cfg}
}

func (p *pivotBreakout) roll(s *session) {
	p.levels = ComputeLevels(s.prevHigh, s.prevLow, s.prevClose, p.cfg)
	p.ready = true
}

func (p *pivotBreakout) decide(s *session, mid float64, l *ledger.Ledger) []Intent {
	if !p.ready {
		return nil
	}

	pos := l.Quantity()
	if stop := p.stopLoss(mid, l); stop != nil {
		return stop
	}

	lv := p.levels
	switch {
	case pos == 0:
		switch {
		case mid > lv.BuyBreak:
			return []Intent{p.intent(IntentEntry, p.cfg.Size)}
		case mid < lv.SellBreak:
			return []Intent{p.intent(IntentEntry, -p.cfg.Size)}
		}
	case pos > 0:
		switch {
		case mid < lv.SellBreak:
			return []Intent{p.intent(IntentExit, -pos)}
		case s.high > lv.SellSetup && mid < lv.SellEnter:
			return []Intent{p.intent(IntentExit, -pos), p.intent(IntentReverse, -p.cfg.Size)}
		}
	case pos < 0:
		switch {
		case mid > lv.BuyBreak:
			return []Intent{p.intent(IntentExit, -pos)}
		case s.low < lv.BuySetup && mid > lv.BuyEnter:
			return []Intent{p.intent(IntentExit, -pos), p.intent(IntentReverse, p.cfg.Size)}
		}
	}
	return nil
}

// stopLoss closes the position once the adverse move from the average entry
// exceeds StopLossPct.
func (p *pivotBreakout) stopLoss(mid float64, l *ledger.Ledger) []Intent {
	pos, avg := l.Quantity(), l.AvgEntry()
	if pos == 0 || avg <= 0 {
		return nil
	}
	move := (mid - avg) / avg
	if (pos > 0 && move < -p.cfg.StopLossPct) || (pos < 0 && move > p.cfg.StopLossPct) {
		return []Intent{p.intent(IntentStopLoss, -pos)}
	}
	return nil
}

func (p *pivotBreakout) intent(kind IntentKind, qty int64) Intent {
	return Intent{Kind: kind, Quantity: qty, Type: order.TypeLimit, AllOrNone: true}
}
