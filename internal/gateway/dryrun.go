package gateway

import (
	"context"

	"trader/internal/order"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// DryRun reads market data from an upstream gateway and only logs the order
// actions it would have sent. It never holds open orders.
type DryRun struct {
	upstream Gateway
	balance  float64
}

func NewDryRun(upstream Gateway, balance float64) (*DryRun, error) {
	if upstream == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "dry run needs an upstream gateway")
	}
	return &DryRun{upstream: upstream, balance: balance}, nil
}

func (d *DryRun) Instrument(ctx context.Context) (Instrument, error) {
	return d.upstream.Instrument(ctx)
}

func (d *DryRun) Position(ctx context.Context) (Position, error) {
	return d.upstream.Position(ctx)
}

func (d *DryRun) Margin(context.Context) (Margin, error) {
	return Margin{MarginBalance: d.balance}, nil
}

func (d *DryRun) OpenOrders(context.Context) ([]order.Order, error) {
	return nil, nil
}

func (d *DryRun) CreateOrders(_ context.Context, orders []order.Order) ([]order.Order, error) {
	for _, o := range orders {
		logs.Infof("dry run: create %s %d @ %.2f", o.Side, o.Quantity, o.Price)
	}
	return orders, nil
}

func (d *DryRun) AmendOrders(_ context.Context, amends []order.Amend) ([]order.Order, error) {
	out := make([]order.Order, 0, len(amends))
	for _, a := range amends {
		logs.Infof("dry run: amend %s %s %d @ %.2f to %d @ %.2f", a.ID, a.Side, a.From.LeavesQty, a.From.Price, a.LeavesQty, a.Price)
		o := a.From
		o.Price, o.LeavesQty = a.Price, a.LeavesQty
		out = append(out, o)
	}
	return out, nil
}

func (d *DryRun) CancelOrders(_ context.Context, orders []order.Order) ([]order.Order, error) {
	for _, o := range orders {
		logs.Infof("dry run: cancel %s %d @ %.2f", o.Side, o.Remaining(), o.Price)
	}
	return orders, nil
}

func (d *DryRun) CancelAll(context.Context) error {
	return nil
}
