package gateway

import (
	"context"
	"time"

	"trader/internal/market"
	"trader/internal/order"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
)

// Instrument states reported by the exchange. Closed is the settlement pause
// during which resting orders stay valid.
const (
	StateOpen   = "Open"
	StateClosed = "Closed"
)

// Instrument is the exchange's view of the traded contract.
type Instrument struct {
	Symbol         string
	TickSize       float64
	TickLog        int32
	HighPrice      float64
	LowPrice       float64
	PrevClosePrice float64
	LastPrice      float64
	MidPrice       float64
	BidPrice       float64
	AskPrice       float64
	State          string
	Timestamp      time.Time
}

// Open reports whether the market accepts orders.
func (i Instrument) Open() bool { return i.State == StateOpen || i.State == StateClosed }

// EmptyBook reports a missing side of the touch.
func (i Instrument) EmptyBook() bool { return i.BidPrice <= 0 || i.AskPrice <= 0 }

// Market returns the contract description used by the strategy.
func (i Instrument) Market() market.Instrument {
	return market.Instrument{Symbol: i.Symbol, TickSize: i.TickSize, TickLog: i.TickLog}
}

// Tick builds a quote observation from the instrument snapshot. Sizes are
// unknown to the instrument endpoint and left at zero.
func (i Instrument) Tick(at time.Time) market.Tick {
	if !i.Timestamp.IsZero() {
		at = i.Timestamp
	}
	return market.Tick{
		Time:      at.UTC(),
		BidPrice:  i.BidPrice,
		AskPrice:  i.AskPrice,
		PrevClose: i.PrevClosePrice,
	}
}

// Position is the exchange-side open position.
type Position struct {
	CurrentQty    int64
	AvgEntryPrice float64
}

// Margin is the account balance in the base asset.
type Margin struct {
	MarginBalance float64
}

// Gateway executes order actions against an exchange. Implementations round
// every emitted price to the instrument tick log.
type Gateway interface {
	Instrument(ctx context.Context) (Instrument, error)
	Position(ctx context.Context) (Position, error)
	Margin(ctx context.Context) (Margin, error)
	OpenOrders(ctx context.Context) ([]order.Order, error)
	CreateOrders(ctx context.Context, orders []order.Order) ([]order.Order, error)
	AmendOrders(ctx context.Context, amends []order.Amend) ([]order.Order, error)
	CancelOrders(ctx context.Context, orders []order.Order) ([]order.Order, error)
	CancelAll(ctx context.Context) error
}

// IsRecoverable reports errors after which the cycle can be retried.
func IsRecoverable(err error) bool {
	return errors.Is(err, exception.ErrOrderClosed) ||
		errors.Is(err, exception.ErrRateLimited) ||
		errors.Is(err, exception.ErrOverloaded)
}
