package order

import "strconv"

// Side is the order direction.
type Side int8

const (
	SideBuy Side = iota + 1
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "Buy"
	case SideSell:
		return "Sell"
	default:
		return "Unknown(" + strconv.Itoa(int(s)) + ")"
	}
}

// Sign returns +1 for buys and -1 for sells.
func (s Side) Sign() int64 {
	if s == SideSell {
		return -1
	}
	return 1
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// SideOf returns the side that moves the position by a signed quantity.
func SideOf(qty int64) Side {
	if qty < 0 {
		return SideSell
	}
	return SideBuy
}

// Type is the execution directive of an order.
type Type int8

const (
	TypeLimit Type = iota + 1
	TypeMarket
)

func (t Type) String() string {
	switch t {
	case TypeLimit:
		return "Limit"
	case TypeMarket:
		return "Market"
	default:
		return "Unknown(" + strconv.Itoa(int(t)) + ")"
	}
}

// Order is either a desired order (ID empty) or a live exchange order.
type Order struct {
	ID        string
	ClOrdID   string
	Side      Side
	Type      Type
	Price     float64
	Quantity  int64
	LeavesQty int64
}

// Live reports whether the order carries an exchange id.
func (o Order) Live() bool {
	return o.ID != ""
}

// Remaining returns the unfilled quantity of a live order, or the quantity of
// a desired one.
func (o Order) Remaining() int64 {
	if o.Live() {
		return o.LeavesQty
	}
	return o.Quantity
}

// Amend changes price and remaining quantity of a live order.
type Amend struct {
	ID        string
	Side      Side
	Price     float64
	LeavesQty int64
	From      Order
}

// Split separates orders by side, keeping the input order.
func Split(orders []Order) (buys, sells []Order) {
	for _, o := range orders {
		switch o.Side {
		case SideBuy:
			buys = append(buys, o)
		case SideSell:
			sells = append(sells, o)
		}
	}
	return buys, sells
}

// Best returns the highest buy and lowest sell price among orders, 0 when absent.
func Best(orders []Order) (highestBuy, lowestSell float64) {
	for _, o := range orders {
		switch o.Side {
		case SideBuy:
			if o.Price > highestBuy {
				highestBuy = o.Price
			}
		case SideSell:
			if lowestSell == 0 || o.Price < lowestSell {
				lowestSell = o.Price
			}
		}
	}
	return highestBuy, lowestSell
}
