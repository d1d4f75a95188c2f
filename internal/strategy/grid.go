package strategy

import (
	"math"

	"trader/internal/market"
	"trader/internal/order"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
)

// gridMaker quotes OrderPairs buy and sell orders around the touch.
type gridMaker struct {
	cfg       GridConfig
	ownBuy    float64
	ownSell   float64
	startBuy  float64
	startSell float64
}

func newGridMaker(cfg GridConfig) *gridMaker {
	return &gridMaker{cfg: cfg}
}

// observe records our own best resting quotes.
func (g *gridMaker) observe(orders []order.Order) {
	g.ownBuy, g.ownSell = order.Best(orders)
}

// ladder builds the desired orders outside-in.
func (g *gridMaker) ladder(t market.Tick, inst market.Instrument, pos int64) ([]order.Order, error) {
	tick := inst.TickSize
	if tick <= 0 {
		tick = math.Pow10(-int(inst.TickLog))
	}

	g.startBuy = t.BidPrice + tick
	g.startSell = t.AskPrice - tick
	if g.cfg.MaintainSpreads {
		if g.ownBuy > 0 && g.ownBuy == t.BidPrice {
			g.startBuy = t.BidPrice
		}
		if g.ownSell > 0 && g.ownSell == t.AskPrice {
			g.startSell = t.AskPrice
		}
	}
	if g.startBuy*(1+g.cfg.MinSpread) > g.startSell {
		g.startBuy *= 1 - g.cfg.MinSpread/2
		g.startSell *= 1 + g.cfg.MinSpread/2
	}

	longLimited := g.cfg.CheckPositionLimits && pos >= g.cfg.MaxPosition
	shortLimited := g.cfg.CheckPositionLimits && pos <= g.cfg.MinPosition

	orders := make([]order.Order, 0, 2*g.cfg.OrderPairs)
	for i := g.cfg.OrderPairs; i >= 1; i-- {
		if !longLimited {
			orders = append(orders, g.order(-i, inst.TickLog))
		}
		if !shortLimited {
			orders = append(orders, g.order(i, inst.TickLog))
		}
	}

	innerBuy := market.Round(g.price(-1), inst.TickLog)
	innerSell := market.Round(g.price(1), inst.TickLog)
	if innerBuy >= t.AskPrice || innerSell <= t.BidPrice {
		return nil, errors.Wrapf(exception.ErrSanityCheck, "buy %.4f ask %.4f sell %.4f bid %.4f", innerBuy, t.AskPrice, innerSell, t.BidPrice)
	}
	return orders, nil
}

// price returns the unrounded price of ladder slot index: negative for buys,
// positive for sells, 1 being the innermost. Maintained spreads put slot 1 at
// the start price; otherwise slot 1 is already one interval out.
func (g *gridMaker) price(index int) float64 {
	start, exp := g.startSell, index
	if index < 0 {
		start = g.startBuy
	}
	if g.cfg.MaintainSpreads {
		if index < 0 {
			exp++
		} else {
			exp--
		}
	}
	return start * math.Pow(1+g.cfg.Interval, float64(exp))
}

func (g *gridMaker) order(index int, tickLog int32) order.Order {
	n := index
	side := order.SideSell
	if index < 0 {
		n = -index
		side = order.SideBuy
	}
	qty := g.cfg.StartSize + int64(n-1)*g.cfg.StepSize
	return order.Order{
		Side:     side,
		Type:     order.TypeLimit,
		Price:    market.Round(g.price(index), tickLog),
		Quantity: qty,
	}
}
