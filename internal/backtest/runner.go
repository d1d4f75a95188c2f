package backtest

import (
	"context"
	"time"

	"trader/internal/ledger"
	"trader/internal/market"
	"trader/internal/order"
	"trader/internal/perf"
	"trader/internal/strategy"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const ctxCheckEvery = 4096

// Config describes one simulated run.
type Config struct {
	StartCapital float64
	Instrument   market.Instrument
	Strategy     strategy.Config
	RiskFree     float64
}

// Fill is one simulated execution. Quantity is signed.
type Fill struct {
	Time     time.Time           `json:"time"`
	Kind     strategy.IntentKind `json:"kind"`
	Quantity int64               `json:"quantity"`
	Price    float64             `json:"price"`
}

// Result is the outcome of a run. Curve holds one point per finished day and
// a final settlement point.
type Result struct {
	Curve      []ledger.Point
	Fills      []Fill
	Summary    perf.Summary
	Accepted   uint64
	Rejected   uint64
	Bankrupt   bool
	BankruptAt time.Time
}

// Runner replays ticks through a fresh engine and ledger per run.
type Runner struct {
	cfg Config
}

func NewRunner(cfg Config) (*Runner, error) {
	if cfg.StartCapital <= 0 {
		return nil, errors.Wrapf(exception.ErrConfigInvalid, "start capital %.8f", cfg.StartCapital)
	}
	if err := cfg.Strategy.Validate(); err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg}, nil
}

// run is the mutable state of one replay.
type run struct {
	engine   *strategy.Engine
	book     *ledger.Ledger
	curve    *ledger.Curve
	fills    []Fill
	pending  []strategy.Intent
	resting  []order.Order
	last     ledger.Point
	lastTick market.Tick

	bidLeft int64
	askLeft int64
}

// Run replays ticks in order. The same ticks and config always produce the
// same result.
func (r *Runner) Run(ctx context.Context, ticks []market.Tick) (Result, error) {
	if len(ticks) == 0 {
		return Result{}, exception.ErrBacktestNoTicks
	}

	book := ledger.New(ledger.Config{StartCapital: r.cfg.StartCapital})
	state := market.NewState(r.cfg.Instrument, r.cfg.Strategy.Filter)
	engine, err := strategy.NewEngine(r.cfg.Strategy, state, book)
	if err != nil {
		return Result{}, err
	}

	s := &run{
		engine: engine,
		book:   book,
		curve:  ledger.NewCurve(len(ticks)/24 + 2),
	}

	var res Result
	for i, t := range ticks {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}

		if err := s.step(t); err != nil {
			return Result{}, errors.Wrapf(err, "tick %s", t.Time.UTC().Format(time.RFC3339))
		}

		if book.Bankrupt() {
			res.Bankrupt = true
			res.BankruptAt = t.Time
			logs.Infof("bankrupt at %s, equity %.8f", t.Time.UTC().Format(time.RFC3339), book.EquityWithUnrealized())
			break
		}
	}

	accepted, rejected := state.Counts()
	if accepted == 0 {
		return Result{}, errors.Wrapf(exception.ErrBacktestNoTicks, "all %d ticks rejected", rejected)
	}

	s.curve.Append(s.last)
	if !res.Bankrupt {
		if err := s.settle(); err != nil {
			return Result{}, err
		}
	}

	res.Curve = s.curve.Points()
	res.Fills = s.fills
	res.Accepted, res.Rejected = accepted, rejected
	wins, losses := book.Record()
	res.Summary = perf.NewAnalyzer(r.cfg.RiskFree).Analyze(res.Curve, wins, losses)
	return res, nil
}

func (s *run) step(t market.Tick) error {
	s.engine.ObserveOpenOrders(s.resting)
	d, err := s.engine.OnTick(t)
	if err != nil {
		return err
	}
	if d.Rejected != nil {
		return nil
	}

	if d.NewDay {
		s.curve.Append(s.last)
		s.pending = nil
	}

	s.lastTick = t
	s.bidLeft, s.askLeft = t.BidSize, t.AskSize

	if err := s.fillResting(t); err != nil {
		return err
	}
	if d.Orders != nil {
		s.resting = d.Orders
	}

	if len(d.Intents) > 0 {
		s.pending = nil
		if err := s.execute(t, d.Intents); err != nil {
			return err
		}
	} else if len(s.pending) > 0 {
		retry := s.pending
		s.pending = nil
		if err := s.execute(t, retry); err != nil {
			return err
		}
	}

	date, _ := s.engine.Day()
	s.last = s.book.Point(date, t.Mid(), s.engine.MovingAverage())
	return nil
}

// execute fills intents against the tick's depth. An all-or-none intent
// without enough depth stops the rest of the decision.
func (s *run) execute(t market.Tick, intents []strategy.Intent) error {
	for _, in := range intents {
		want := in.Quantity
		if want < 0 {
			want = -want
		}

		avail, price := s.askLeft, t.AskPrice
		if in.Quantity < 0 {
			avail, price = s.bidLeft, t.BidPrice
		}
		if in.AllOrNone && avail < want {
			return nil
		}

		filled := min(want, avail)
		if in.Quantity < 0 {
			filled = -filled
		}
		if err := s.record(in, filled, price, t.Time); err != nil {
			return err
		}
		if rest, ok := in.Remainder(filled); ok {
			s.pending = append(s.pending, rest)
		}
	}
	return nil
}

// fillResting matches the ladder left from the previous tick.
func (s *run) fillResting(t market.Tick) error {
	if len(s.resting) == 0 {
		return nil
	}
	kept := make([]order.Order, 0, len(s.resting))
	for _, o := range s.resting {
		var filled int64
		switch o.Side {
		case order.SideBuy:
			if o.Price >= t.AskPrice {
				filled = min(o.Quantity, s.askLeft)
			}
		case order.SideSell:
			if o.Price <= t.BidPrice {
				filled = -min(o.Quantity, s.bidLeft)
			}
		}
		if filled == 0 {
			kept = append(kept, o)
			continue
		}
		if err := s.record(strategy.Intent{Kind: strategy.IntentQuote, Quantity: filled, Type: order.TypeLimit}, filled, o.Price, t.Time); err != nil {
			return err
		}
		if left := o.Quantity - abs(filled); left > 0 {
			o.Quantity = left
			kept = append(kept, o)
		}
	}
	s.resting = kept
	return nil
}

// record applies one fill to the engine and consumes depth.
func (s *run) record(in strategy.Intent, filled int64, price float64, at time.Time) error {
	if filled == 0 {
		return nil
	}
	if err := s.engine.ApplyFill(in, filled, price); err != nil {
		return err
	}
	if filled > 0 {
		s.askLeft -= filled
	} else {
		s.bidLeft += filled
	}
	s.fills = append(s.fills, Fill{Time: at, Kind: in.Kind, Quantity: filled, Price: price})
	return nil
}

// settle force-closes the open position at the last opposing price and
// appends the settlement point. A flat book is marked at the last mid.
func (s *run) settle() error {
	qty := s.book.Quantity()
	price := s.lastTick.Mid()
	if qty != 0 {
		price = s.lastTick.BidPrice
		if qty < 0 {
			price = s.lastTick.AskPrice
		}
		if _, err := s.book.ApplyFill(-qty, price); err != nil {
			return errors.Wrap(err, "final settlement")
		}
		s.fills = append(s.fills, Fill{Time: s.lastTick.Time, Kind: strategy.IntentExit, Quantity: -qty, Price: price})
		logs.Infof("final settlement %d @ %.2f, realized %.8f", -qty, price, s.book.Realized())
	}

	date, _ := s.engine.Day()
	s.curve.Append(s.book.Point(date, price, s.engine.MovingAverage()))
	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
