package bitmex

import (
	"strconv"
	"time"

	"trader/internal/gateway"
	"trader/internal/market"
	"trader/internal/order"

	"github.com/yanun0323/decimal"
)

const satoshi = 1e8

// Instrument is the /instrument payload. Nullable prices are pointers.
type Instrument struct {
	Symbol         string           `json:"symbol"`
	State          string           `json:"state"`
	TickSize       *decimal.Decimal `json:"tickSize"`
	HighPrice      *decimal.Decimal `json:"highPrice"`
	LowPrice       *decimal.Decimal `json:"lowPrice"`
	PrevClosePrice *decimal.Decimal `json:"prevClosePrice"`
	LastPrice      *decimal.Decimal `json:"lastPrice"`
	MidPrice       *decimal.Decimal `json:"midPrice"`
	BidPrice       *decimal.Decimal `json:"bidPrice"`
	AskPrice       *decimal.Decimal `json:"askPrice"`
	Timestamp      time.Time        `json:"timestamp"`
}

func (i Instrument) toGateway() gateway.Instrument {
	tick := num(i.TickSize)
	inst := gateway.Instrument{
		Symbol:         i.Symbol,
		TickSize:       tick,
		HighPrice:      num(i.HighPrice),
		LowPrice:       num(i.LowPrice),
		PrevClosePrice: num(i.PrevClosePrice),
		LastPrice:      num(i.LastPrice),
		MidPrice:       num(i.MidPrice),
		BidPrice:       num(i.BidPrice),
		AskPrice:       num(i.AskPrice),
		State:          i.State,
		Timestamp:      i.Timestamp,
	}
	if tick > 0 {
		inst.TickLog = market.TickLog(tick)
	}
	return inst
}

// Position is one /position row.
type Position struct {
	Symbol        string           `json:"symbol"`
	CurrentQty    int64            `json:"currentQty"`
	AvgEntryPrice *decimal.Decimal `json:"avgEntryPrice"`
}

// Margin is the /user/margin payload. Balances are in satoshi.
type Margin struct {
	Currency      string `json:"currency"`
	MarginBalance int64  `json:"marginBalance"`
}

// orderRequest is one order sent to /order/bulk.
type orderRequest struct {
	OrderID   string  `json:"orderID,omitempty"`
	ClOrdID   string  `json:"clOrdID,omitempty"`
	Symbol    string  `json:"symbol,omitempty"`
	Side      string  `json:"side,omitempty"`
	OrdType   string  `json:"ordType,omitempty"`
	Price     float64 `json:"price,omitempty"`
	OrderQty  int64   `json:"orderQty,omitempty"`
	LeavesQty int64   `json:"leavesQty,omitempty"`
	ExecInst  string  `json:"execInst,omitempty"`
}

// Order is an order as reported by /order and /order/bulk.
type Order struct {
	OrderID   string           `json:"orderID,omitempty"`
	ClOrdID   string           `json:"clOrdID,omitempty"`
	Symbol    string           `json:"symbol,omitempty"`
	Side      string           `json:"side,omitempty"`
	OrdType   string           `json:"ordType,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	OrderQty  int64            `json:"orderQty,omitempty"`
	LeavesQty int64            `json:"leavesQty,omitempty"`
	OrdStatus string           `json:"ordStatus,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func (o Order) toOrder() order.Order {
	side := order.SideBuy
	if o.Side == "Sell" {
		side = order.SideSell
	}
	typ := order.TypeLimit
	if o.OrdType == "Market" {
		typ = order.TypeMarket
	}
	return order.Order{
		ID:        o.OrderID,
		ClOrdID:   o.ClOrdID,
		Side:      side,
		Type:      typ,
		Price:     num(o.Price),
		Quantity:  o.OrderQty,
		LeavesQty: o.LeavesQty,
	}
}

// Quote is one /quote/bucketed row and one quote table row on the stream.
type Quote struct {
	Timestamp time.Time        `json:"timestamp"`
	Symbol    string           `json:"symbol"`
	BidSize   int64            `json:"bidSize"`
	BidPrice  *decimal.Decimal `json:"bidPrice"`
	AskPrice  *decimal.Decimal `json:"askPrice"`
	AskSize   int64            `json:"askSize"`
}

// TradeBin is one /trade/bucketed row.
type TradeBin struct {
	Timestamp time.Time        `json:"timestamp"`
	Symbol    string           `json:"symbol"`
	Open      *decimal.Decimal `json:"open"`
	High      *decimal.Decimal `json:"high"`
	Low       *decimal.Decimal `json:"low"`
	Close     *decimal.Decimal `json:"close"`
}

// Tick converts a quote into a record tick. Missing prices become -1.
func (q Quote) Tick(prevClose float64) market.Tick {
	return market.Tick{
		Time:      q.Timestamp.UTC(),
		BidSize:   q.BidSize,
		BidPrice:  price(q.BidPrice),
		AskPrice:  price(q.AskPrice),
		AskSize:   q.AskSize,
		PrevClose: prevClose,
	}
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Name    string `json:"name"`
	} `json:"error"`
}

// num returns the float value of d, 0 when absent.
func num(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	v, err := strconv.ParseFloat(d.String(), 64)
	if err != nil {
		return 0
	}
	return v
}

// price is num with -1 for a missing value.
func price(d *decimal.Decimal) float64 {
	if d == nil {
		return -1
	}
	return num(d)
}
