package live

import (
	"context"
	"os"
	"sync"
	"time"

	"trader/internal/bus"
	"trader/internal/gateway"
	"trader/internal/ledger"
	"trader/internal/market"
	"trader/internal/obs"
	"trader/internal/order"
	"trader/internal/reconcile"
	"trader/internal/risk"
	"trader/internal/strategy"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

// errRedo asks Run to repeat the cycle right away.
var errRedo = errors.New("live: redo cycle")

// Config paces the loop.
type Config struct {
	Interval         time.Duration
	APIRestInterval  time.Duration
	APIErrorInterval time.Duration
	AmendRetryDelay  time.Duration
	SnapshotPath     string
}

// Deps are the collaborators of a Loop. Quotes, Equity, Metrics and IDs are
// optional.
type Deps struct {
	Gateway    gateway.Gateway
	Engine     *strategy.Engine
	Risk       *risk.Engine
	Reconciler reconcile.Reconciler
	Quotes     *QuoteCache
	Equity     *bus.EquityFeed
	Metrics    *obs.Metrics
	IDs        *obs.CycleIDs
}

// pendingIntent is an intent whose order may still be resting.
type pendingIntent struct {
	intent strategy.Intent
	price  float64
}

// Loop polls the exchange, runs the strategy on the current quote and
// converges the resting orders to the strategy's wishes.
type Loop struct {
	cfg     Config
	gw      gateway.Gateway
	engine  *strategy.Engine
	book    *ledger.Ledger
	risk    *risk.Engine
	recon   reconcile.Reconciler
	quotes  *QuoteCache
	equity  *bus.EquityFeed
	metrics *obs.Metrics
	ids     *obs.CycleIDs

	pending []pendingIntent
	last    ledger.Point
	hasLast bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool

	mu     sync.RWMutex
	wins   int
	losses int
	halted error
}

func New(cfg Config, deps Deps) (*Loop, error) {
	if deps.Gateway == nil || deps.Engine == nil || deps.Risk == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "live loop needs gateway, engine and risk")
	}
	if cfg.Interval <= 0 || cfg.APIErrorInterval <= 0 {
		return nil, errors.Wrap(exception.ErrConfigInvalid, "live loop intervals must be > 0")
	}
	return &Loop{
		cfg:     cfg,
		gw:      deps.Gateway,
		engine:  deps.Engine,
		book:    deps.Engine.Ledger(),
		risk:    deps.Risk,
		recon:   deps.Reconciler,
		quotes:  deps.Quotes,
		equity:  deps.Equity,
		metrics: deps.Metrics,
		ids:     deps.IDs,
		now:     time.Now,
		sleep:   sleepCtx,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-sys.Shutdown():
		return false
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Restore loads the ledger snapshot written by a previous run, if any.
func (l *Loop) Restore() error {
	if l.cfg.SnapshotPath == "" {
		return nil
	}
	snap, err := ledger.ReadSnapshot(l.cfg.SnapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return errors.Wrap(err, "restore ledger")
	}
	l.book.Restore(snap)
	l.setRecord()
	logs.Infof("ledger restored: position %d avg %.2f realized %.8f", snap.Quantity, snap.AvgEntry, snap.Realized)
	return nil
}

// Run cycles until ctx is done, the process shuts down or a fatal error
// occurs. Resting orders are cancelled on the way out. Shutdown is not an
// error.
func (l *Loop) Run(ctx context.Context) error {
	defer l.saveSnapshot()

	for {
		start := l.now()
		err := l.Cycle(ctx)
		l.metrics.ObserveCycle(l.now().Sub(start), err)

		wait := l.cfg.Interval
		switch {
		case err == nil:
		case errors.Is(err, errRedo):
			wait = l.cfg.AmendRetryDelay
		case ctx.Err() != nil:
			l.cancelAll()
			return nil
		case gateway.IsRecoverable(err):
			logs.Errorf("recoverable: %+v", err)
			wait = l.cfg.APIErrorInterval
		default:
			logs.Errorf("fatal: %+v", err)
			l.halt(err)
			l.cancelAll()
			return err
		}

		if !l.sleep(ctx, wait) {
			logs.Info("shutting down, cancelling open orders")
			l.cancelAll()
			return nil
		}
	}
}

// cancelAll never fails the exit path.
func (l *Loop) cancelAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.gw.CancelAll(ctx); err != nil {
		logs.Errorf("cancel all: %+v", err)
	}
}

func (l *Loop) saveSnapshot() {
	if l.cfg.SnapshotPath == "" || !l.book.Started() {
		return
	}
	if err := ledger.WriteSnapshot(l.cfg.SnapshotPath, l.book.Snapshot()); err != nil {
		logs.Errorf("write ledger snapshot: %+v", err)
	}
}

// Cycle runs one poll of the exchange.
func (l *Loop) Cycle(ctx context.Context) error {
	id := l.ids.Next()

	inst, err := l.gw.Instrument(ctx)
	if err != nil {
		return err
	}
	if !inst.Open() {
		return errors.Wrapf(exception.ErrMarketClosed, "state %q", inst.State)
	}
	if inst.EmptyBook() {
		return errors.Wrapf(exception.ErrEmptyBook, "bid %.2f ask %.2f", inst.BidPrice, inst.AskPrice)
	}
	l.engine.Market().SetInstrument(inst.Market())
	l.quotes.SetPrevClose(inst.PrevClosePrice)

	tick := inst.Tick(l.now())
	if q, ok := l.quotes.Latest(); ok && !q.Time.Before(tick.Time) {
		q.PrevClose = inst.PrevClosePrice
		tick = q
	}

	if !l.book.Started() {
		start := tick.PrevClose
		if start <= 0 {
			start = tick.Mid()
		}
		if err := l.book.Start(start); err != nil {
			return err
		}
	}

	pos, err := l.gw.Position(ctx)
	if err != nil {
		return err
	}
	if err := l.sync(pos, inst); err != nil {
		return err
	}

	d, err := l.engine.OnTick(tick)
	if err != nil {
		return err
	}
	l.metrics.ObserveDecision(d)
	if d.Rejected != nil {
		return nil
	}
	if d.NewDay {
		l.publish()
		l.pending = nil
	}
	date, _ := l.engine.Day()
	l.last = l.book.Point(date, tick.Mid(), l.engine.MovingAverage())
	l.hasLast = true

	if l.book.Bankrupt() {
		return errors.Wrapf(exception.ErrBankrupt, "equity %.8f", l.book.EquityWithUnrealized())
	}

	desired := d.Orders
	if d.Orders == nil {
		if len(d.Intents) > 0 {
			l.pending = l.pending[:0]
			for _, in := range d.Intents {
				l.pending = append(l.pending, pendingIntent{intent: in})
			}
		}
		desired = l.intentOrders(tick)
	}

	allowed, denied := l.risk.Filter(desired, l.book.Quantity(), l.now().UnixNano())
	for _, dn := range denied {
		l.metrics.IncRiskReason(dn.Reason)
		logs.Infof("[%s] risk denied %s %d @ %.2f: %s", id, dn.Order.Side, dn.Order.Quantity, dn.Order.Price, dn.Reason)
	}

	existing, err := l.gw.OpenOrders(ctx)
	if err != nil {
		return err
	}
	l.engine.ObserveOpenOrders(existing)

	res := l.recon.Reconcile(allowed, existing)
	l.metrics.ObserveReconcile(res)
	if res.Empty() {
		return nil
	}
	logs.Infof("[%s] amend %d create %d cancel %d", id, len(res.Amend), len(res.Create), len(res.Cancel))
	return l.execute(ctx, res)
}

func (l *Loop) execute(ctx context.Context, res reconcile.Result) error {
	if len(res.Amend) > 0 {
		if _, err := l.gw.AmendOrders(ctx, res.Amend); err != nil {
			if errors.Is(err, exception.ErrOrderClosed) {
				logs.Infof("amend raced a fill, redoing cycle: %+v", err)
				return errRedo
			}
			return err
		}
		if !l.sleep(ctx, l.cfg.APIRestInterval) {
			return ctx.Err()
		}
	}
	if len(res.Create) > 0 {
		if _, err := l.gw.CreateOrders(ctx, res.Create); err != nil {
			return err
		}
		if !l.sleep(ctx, l.cfg.APIRestInterval) {
			return ctx.Err()
		}
	}
	if len(res.Cancel) > 0 {
		if _, err := l.gw.CancelOrders(ctx, res.Cancel); err != nil {
			return err
		}
	}
	return nil
}

// intentOrders prices the pending intents at the touch: buys at the ask and
// sells at the bid.
func (l *Loop) intentOrders(t market.Tick) []order.Order {
	orders := make([]order.Order, 0, len(l.pending))
	for i := range l.pending {
		in := l.pending[i].intent
		price := t.AskPrice
		if in.Quantity < 0 {
			price = t.BidPrice
		}
		price = l.engine.Market().Round(price)
		l.pending[i].price = price
		orders = append(orders, order.Order{
			Side:     in.Side(),
			Type:     in.Type,
			Price:    price,
			Quantity: absQty(in.Quantity),
		})
	}
	return orders
}

// sync books the difference between the exchange position and the ledger.
// Fills are attributed to pending intents first, at the price their orders
// were sent with. What is left is booked as a quote fill at the mid.
func (l *Loop) sync(pos gateway.Position, inst gateway.Instrument) error {
	delta := pos.CurrentQty - l.book.Quantity()
	if delta == 0 {
		return nil
	}
	logs.Infof("position moved by %d to %d", delta, pos.CurrentQty)

	kept := l.pending[:0]
	for _, p := range l.pending {
		take := int64(0)
		if delta != 0 && (delta > 0) == (p.intent.Quantity > 0) {
			take = min(absQty(delta), absQty(p.intent.Quantity))
			if delta < 0 {
				take = -take
			}
		}
		if take != 0 {
			if err := l.engine.ApplyFill(p.intent, take, p.price); err != nil {
				return err
			}
			delta -= take
		}
		if rest, ok := p.intent.Remainder(take); ok {
			kept = append(kept, pendingIntent{intent: rest, price: p.price})
		}
	}
	l.pending = kept

	if delta != 0 {
		price := inst.MidPrice
		if price <= 0 {
			price = (inst.BidPrice + inst.AskPrice) / 2
		}
		if l.book.Quantity() == 0 && pos.AvgEntryPrice > 0 && delta == pos.CurrentQty {
			price = pos.AvgEntryPrice
		}
		fill := strategy.Intent{Kind: strategy.IntentQuote, Quantity: delta, Type: order.TypeLimit}
		if err := l.engine.ApplyFill(fill, delta, price); err != nil {
			return err
		}
	}
	l.setRecord()
	return nil
}

// publish sends the finished day's point to the equity feed.
func (l *Loop) publish() {
	if !l.hasLast || l.equity == nil {
		return
	}
	if err := l.equity.TryPublish(l.last); err != nil {
		logs.Errorf("publish equity point %s: %+v", l.last.Date, err)
	}
}

func (l *Loop) setRecord() {
	wins, losses := l.book.Record()
	l.mu.Lock()
	l.wins, l.losses = wins, losses
	l.mu.Unlock()
}

func (l *Loop) halt(err error) {
	l.mu.Lock()
	l.halted = err
	l.mu.Unlock()
}

// Record returns the settlement record. Safe for concurrent use.
func (l *Loop) Record() (wins, losses int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.wins, l.losses
}

// Health returns the error that stopped the loop, nil while it runs.
// Safe for concurrent use.
func (l *Loop) Health() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.halted
}

func absQty(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
