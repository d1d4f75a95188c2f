package strategy

import (
	"trader/internal/ledger"
	"trader/internal/market"
	"trader/internal/order"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Engine runs one strategy variant over a tick stream. The variant is chosen
// once at construction; exactly one of the variant pointers is set.
// Engine is not safe for concurrent use.
type Engine struct {
	cfg    Config
	market *market.State
	ledger *ledger.Ledger
	day    session

	grid     *gridMaker
	donchian *donchian
	average  *movingAverage
	pivot    *pivotBreakout
}

// NewEngine builds the engine for cfg.Kind over the given market state and ledger.
func NewEngine(cfg Config, state *market.State, book *ledger.Ledger) (*Engine, error) {
	if state == nil || book == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "engine needs market state and ledger")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, market: state, ledger: book}
	switch cfg.Kind {
	case KindGrid:
		e.grid = newGridMaker(cfg.Grid)
	case KindDonchian:
		e.donchian = newDonchian(cfg.Pyramid)
	case KindMovingAverage:
		e.average = newMovingAverage(cfg.Pyramid, cfg.MovingAverage)
	case KindPivot:
		e.pivot = newPivotBreakout(cfg.Pivot)
	}
	return e, nil
}

func (e *Engine) Kind() Kind { return e.cfg.Kind }

func (e *Engine) Market() *market.State { return e.market }

func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// OnTick validates t, updates the day session and the ledger valuation, and
// asks the active variant for a decision. The returned error is fatal.
func (e *Engine) OnTick(t market.Tick) (Decision, error) {
	if err := e.market.Accept(t); err != nil {
		logs.Infof("skip tick %s: %+v", t.Time.UTC().Format("2006-01-02T15:04:05Z"), err)
		return Decision{Rejected: err}, nil
	}

	mid := t.Mid()
	first := !e.day.started()
	newDay := e.day.advance(t)
	if first {
		if err := e.ledger.Start(e.day.prevClose); err != nil {
			return Decision{}, err
		}
		if e.average != nil {
			e.average.start(e.ledger.InitPrice())
		}
	}
	e.ledger.AccrueOnPriceMove(mid)

	if newDay {
		e.roll()
	}
	e.day.observe(mid)

	d := Decision{NewDay: newDay}
	switch e.cfg.Kind {
	case KindGrid:
		orders, err := e.grid.ladder(t, e.market.Instrument(), e.ledger.Quantity())
		if err != nil {
			return d, err
		}
		d.Orders = orders
	case KindDonchian:
		d.Intents = e.donchian.decide(&e.day, mid, e.ledger)
	case KindMovingAverage:
		if newDay {
			d.Intents = e.average.decide(&e.day, mid, e.ledger)
		}
	case KindPivot:
		d.Intents = e.pivot.decide(&e.day, mid, e.ledger)
	}
	return d, nil
}

func (e *Engine) roll() {
	switch e.cfg.Kind {
	case KindDonchian:
		e.donchian.roll(&e.day, e.ledger.EquityBase())
	case KindMovingAverage:
		e.average.roll(&e.day, e.ledger)
	case KindPivot:
		e.pivot.roll(&e.day)
	}
	logs.Infof("new trading day %s, day %d, prev high %.2f low %.2f close %.2f", e.day.date, e.day.days, e.day.prevHigh, e.day.prevLow, e.day.prevClose)
}

// ApplyFill books filled contracts of intent at price and advances the
// variant. filled must carry the intent's sign and not exceed it.
func (e *Engine) ApplyFill(intent Intent, filled int64, price float64) error {
	if filled == 0 {
		return nil
	}
	if (filled > 0) != (intent.Quantity > 0) || abs(filled) > abs(intent.Quantity) {
		return errors.Wrapf(exception.ErrInvalidArgument, "fill %d for intent %d", filled, intent.Quantity)
	}
	if _, err := e.ledger.ApplyFill(filled, price); err != nil {
		return errors.Wrap(err, "apply fill")
	}

	if intent.Kind == IntentRemainder || intent.Kind == IntentQuote {
		return nil
	}
	switch e.cfg.Kind {
	case KindDonchian:
		e.donchian.fill(intent, price, e.ledger)
	case KindMovingAverage:
		e.average.fill(intent, price, e.ledger)
	}
	return nil
}

// ObserveOpenOrders lets the grid keep its quotes at the touch.
func (e *Engine) ObserveOpenOrders(orders []order.Order) {
	if e.grid != nil {
		e.grid.observe(orders)
	}
}

// Level returns the signed pyramid level, 0 for other variants.
func (e *Engine) Level() int {
	switch {
	case e.donchian != nil:
		return e.donchian.level
	case e.average != nil:
		return e.average.level
	default:
		return 0
	}
}

// MovingAverage returns the current SMA, 0 for other variants.
func (e *Engine) MovingAverage() float64 {
	if e.average == nil {
		return 0
	}
	return e.average.average()
}

// Levels returns today's pivot levels.
func (e *Engine) Levels() (Levels, bool) {
	if e.pivot == nil {
		return Levels{}, false
	}
	return e.pivot.levels, e.pivot.ready
}

// Day returns the current trading day and the number of completed days.
func (e *Engine) Day() (string, int) {
	return e.day.date, e.day.days
}

// LastMid returns the last accepted mid price.
func (e *Engine) LastMid() float64 {
	return e.day.lastMid
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
