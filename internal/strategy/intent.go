package strategy

import (
	"strconv"

	"trader/internal/order"
)

// IntentKind tells the engine how a fill advances the variant state.
type IntentKind int8

const (
	IntentEntry IntentKind = iota + 1
	IntentAdd
	IntentExit
	IntentReverse
	IntentStopLoss
	// IntentRemainder retries the unfilled part of an earlier intent. Its
	// fills touch the ledger only.
	IntentRemainder
	// IntentQuote is a fill of a resting ladder order.
	IntentQuote
)

func (k IntentKind) String() string {
	switch k {
	case IntentEntry:
		return "entry"
	case IntentAdd:
		return "add"
	case IntentExit:
		return "exit"
	case IntentReverse:
		return "reverse"
	case IntentStopLoss:
		return "stop_loss"
	case IntentRemainder:
		return "remainder"
	case IntentQuote:
		return "quote"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// Intent is a request to trade Quantity contracts (signed) at the touch.
type Intent struct {
	Kind      IntentKind
	Quantity  int64
	Type      order.Type
	AllOrNone bool
}

func (i Intent) Side() order.Side {
	return order.SideOf(i.Quantity)
}

// Remainder returns a retry intent for the part of i that did not fill.
func (i Intent) Remainder(filled int64) (Intent, bool) {
	rest := i.Quantity - filled
	if rest == 0 || (rest > 0) != (i.Quantity > 0) {
		return Intent{}, false
	}
	return Intent{Kind: IntentRemainder, Quantity: rest, Type: i.Type}, true
}

// Decision is the outcome of one tick. Exactly one of Intents or Orders is
// used, depending on the variant. Rejected is set when the tick failed
// validation, in which case nothing else changed.
type Decision struct {
	Rejected error
	NewDay   bool
	Intents  []Intent
	Orders   []order.Order
}
