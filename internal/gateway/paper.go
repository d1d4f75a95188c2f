package gateway

import (
	"context"
	"strconv"
	"sync"

	"trader/internal/market"
	"trader/internal/order"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
)

// Operation names used for error injection and call counting.
const (
	OpInstrument   = "instrument"
	OpPosition     = "position"
	OpMargin       = "margin"
	OpOpenOrders   = "open_orders"
	OpCreateOrders = "create_orders"
	OpAmendOrders  = "amend_orders"
	OpCancelOrders = "cancel_orders"
	OpCancelAll    = "cancel_all"
)

// Paper is an in-memory exchange. Resting orders fill at their own price when
// a new instrument snapshot crosses them, if matching is enabled.
type Paper struct {
	mu     sync.Mutex
	inst   Instrument
	pos    Position
	margin Margin
	orders []order.Order
	seq    int
	prefix string
	match  bool
	fail   map[string][]error
	calls  map[string]int
}

func NewPaper(inst Instrument, marginBalance float64, match bool) *Paper {
	if inst.TickLog == 0 && inst.TickSize > 0 {
		inst.TickLog = market.TickLog(inst.TickSize)
	}
	return &Paper{
		inst:   inst,
		margin: Margin{MarginBalance: marginBalance},
		prefix: "paper-",
		match:  match,
		fail:   map[string][]error{},
		calls:  map[string]int{},
	}
}

// SetInstrument replaces the market snapshot and matches crossing orders.
func (p *Paper) SetInstrument(inst Instrument) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if inst.TickLog == 0 && inst.TickSize > 0 {
		inst.TickLog = market.TickLog(inst.TickSize)
	}
	p.inst = inst
	if p.match {
		p.matchLocked()
	}
}

// SetPosition overrides the exchange-side position.
func (p *Paper) SetPosition(pos Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos = pos
}

// Fail queues err as the result of the next call to op.
func (p *Paper) Fail(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[op] = append(p.fail[op], err)
}

// Calls returns how many times op was invoked.
func (p *Paper) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Orders returns a copy of the resting orders.
func (p *Paper) Orders() []order.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]order.Order(nil), p.orders...)
}

func (p *Paper) enter(op string) error {
	p.calls[op]++
	if queued := p.fail[op]; len(queued) > 0 {
		p.fail[op] = queued[1:]
		return queued[0]
	}
	return nil
}

func (p *Paper) Instrument(ctx context.Context) (Instrument, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpInstrument); err != nil {
		return Instrument{}, err
	}
	return p.inst, nil
}

func (p *Paper) Position(ctx context.Context) (Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpPosition); err != nil {
		return Position{}, err
	}
	return p.pos, nil
}

func (p *Paper) Margin(ctx context.Context) (Margin, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpMargin); err != nil {
		return Margin{}, err
	}
	return p.margin, nil
}

func (p *Paper) OpenOrders(ctx context.Context) ([]order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpOpenOrders); err != nil {
		return nil, err
	}
	return append([]order.Order(nil), p.orders...), nil
}

func (p *Paper) CreateOrders(ctx context.Context, orders []order.Order) ([]order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCreateOrders); err != nil {
		return nil, err
	}

	created := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		if o.Quantity <= 0 || o.Price <= 0 {
			return created, errors.Wrapf(exception.ErrInvalidArgument, "order %s %d @ %.4f", o.Side, o.Quantity, o.Price)
		}
		p.seq++
		o.ID = p.prefix + strconv.Itoa(p.seq)
		if o.ClOrdID == "" {
			o.ClOrdID = o.ID
		}
		o.Price = market.Round(o.Price, p.inst.TickLog)
		o.LeavesQty = o.Quantity
		p.orders = append(p.orders, o)
		created = append(created, o)
	}
	if p.match {
		p.matchLocked()
	}
	return created, nil
}

func (p *Paper) AmendOrders(ctx context.Context, amends []order.Amend) ([]order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpAmendOrders); err != nil {
		return nil, err
	}

	amended := make([]order.Order, 0, len(amends))
	for _, a := range amends {
		idx := p.indexLocked(a.ID)
		if idx < 0 {
			return amended, errors.Wrapf(exception.ErrOrderClosed, "amend %s", a.ID)
		}
		o := p.orders[idx]
		o.Price = market.Round(a.Price, p.inst.TickLog)
		o.Quantity += a.LeavesQty - o.LeavesQty
		o.LeavesQty = a.LeavesQty
		p.orders[idx] = o
		amended = append(amended, o)
	}
	if p.match {
		p.matchLocked()
	}
	return amended, nil
}

func (p *Paper) CancelOrders(ctx context.Context, orders []order.Order) ([]order.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCancelOrders); err != nil {
		return nil, err
	}

	cancelled := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		idx := p.indexLocked(o.ID)
		if idx < 0 {
			continue
		}
		cancelled = append(cancelled, p.orders[idx])
		p.orders = append(p.orders[:idx], p.orders[idx+1:]...)
	}
	return cancelled, nil
}

func (p *Paper) CancelAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(OpCancelAll); err != nil {
		return err
	}
	p.orders = nil
	return nil
}

func (p *Paper) indexLocked(id string) int {
	for i, o := range p.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// matchLocked fills resting orders crossed by the touch at their own price.
func (p *Paper) matchLocked() {
	if p.inst.EmptyBook() {
		return
	}
	kept := p.orders[:0]
	for _, o := range p.orders {
		crossed := (o.Side == order.SideBuy && o.Price >= p.inst.AskPrice) ||
			(o.Side == order.SideSell && o.Price <= p.inst.BidPrice)
		if !crossed {
			kept = append(kept, o)
			continue
		}
		p.applyLocked(o.Side.Sign()*o.LeavesQty, o.Price)
	}
	p.orders = kept
}

func (p *Paper) applyLocked(delta int64, price float64) {
	cur := p.pos.CurrentQty
	next := cur + delta
	switch {
	case next == 0:
		p.pos.AvgEntryPrice = 0
	case cur == 0 || (cur > 0) != (next > 0):
		p.pos.AvgEntryPrice = price
	case (cur > 0) == (delta > 0):
		held, added := float64(absQty(cur)), float64(absQty(delta))
		p.pos.AvgEntryPrice = (p.pos.AvgEntryPrice*held + price*added) / (held + added)
	}
	p.pos.CurrentQty = next
}

func absQty(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
