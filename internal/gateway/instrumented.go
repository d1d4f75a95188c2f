package gateway

import (
	"context"
	"time"

	"trader/internal/order"
)

// CallRecorder receives the duration and outcome of every gateway call.
type CallRecorder interface {
	ObserveCall(op string, d time.Duration, err error)
}

// Instrumented wraps a Gateway and reports each call to a CallRecorder.
type Instrumented struct {
	next Gateway
	rec  CallRecorder
	now  func() time.Time
}

var _ Gateway = (*Instrumented)(nil)

func NewInstrumented(next Gateway, rec CallRecorder) *Instrumented {
	return &Instrumented{next: next, rec: rec, now: time.Now}
}

func (g *Instrumented) observe(op string, start time.Time, err error) {
	if g.rec != nil {
		g.rec.ObserveCall(op, g.now().Sub(start), err)
	}
}

func (g *Instrumented) Instrument(ctx context.Context) (Instrument, error) {
	start := g.now()
	inst, err := g.next.Instrument(ctx)
	g.observe(OpInstrument, start, err)
	return inst, err
}

func (g *Instrumented) Position(ctx context.Context) (Position, error) {
	start := g.now()
	pos, err := g.next.Position(ctx)
	g.observe(OpPosition, start, err)
	return pos, err
}

func (g *Instrumented) Margin(ctx context.Context) (Margin, error) {
	start := g.now()
	m, err := g.next.Margin(ctx)
	g.observe(OpMargin, start, err)
	return m, err
}

func (g *Instrumented) OpenOrders(ctx context.Context) ([]order.Order, error) {
	start := g.now()
	orders, err := g.next.OpenOrders(ctx)
	g.observe(OpOpenOrders, start, err)
	return orders, err
}

func (g *Instrumented) CreateOrders(ctx context.Context, orders []order.Order) ([]order.Order, error) {
	start := g.now()
	out, err := g.next.CreateOrders(ctx, orders)
	g.observe(OpCreateOrders, start, err)
	return out, err
}

func (g *Instrumented) AmendOrders(ctx context.Context, amends []order.Amend) ([]order.Order, error) {
	start := g.now()
	out, err := g.next.AmendOrders(ctx, amends)
	g.observe(OpAmendOrders, start, err)
	return out, err
}

func (g *Instrumented) CancelOrders(ctx context.Context, orders []order.Order) ([]order.Order, error) {
	start := g.now()
	out, err := g.next.CancelOrders(ctx, orders)
	g.observe(OpCancelOrders, start, err)
	return out, err
}

func (g *Instrumented) CancelAll(ctx context.Context) error {
	start := g.now()
	err := g.next.CancelAll(ctx)
	g.observe(OpCancelAll, start, err)
	return err
}
