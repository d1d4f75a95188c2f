package ledger

import (
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
)

// Config holds the ledger's starting capital, denominated in the base asset.
type Config struct {
	StartCapital float64 `yaml:"start_capital"`
}

// Position is a point-in-time copy of the ledger's position.
type Position struct {
	Quantity int64
	AvgEntry float64
	Realized float64
	Bankrupt bool
}

// Ledger tracks an inverse contract position. Quantities are contracts quoted
// in USD, P&L is in the base asset. Not safe for concurrent use.
type Ledger struct {
	cfg Config
	pos Position

	initPrice  float64
	lastPrice  float64
	unrealized float64

	totalPct    float64
	realizedPct float64
	baselinePct float64

	wins   int
	losses int
}

// New returns a flat ledger.
func New(cfg Config) *Ledger {
	return &Ledger{cfg: cfg}
}

// Start records the baseline price. Only the first call takes effect.
func (l *Ledger) Start(price float64) error {
	if price <= 0 {
		return errors.Wrapf(exception.ErrLedgerInvalidPrice, "start price %.4f", price)
	}
	if l.initPrice > 0 {
		return nil
	}
	l.initPrice = price
	l.lastPrice = price
	return nil
}

func (l *Ledger) Started() bool { return l.initPrice > 0 }

// AccrueOnPriceMove revalues the open position at price.
func (l *Ledger) AccrueOnPriceMove(price float64) {
	if price <= 0 || l.initPrice <= 0 {
		return
	}
	l.lastPrice = price
	l.revalue()
}

// UpdateAverageEntry scales into the position. added must carry the same sign
// as the open position; reductions go through Settle.
func (l *Ledger) UpdateAverageEntry(added int64, price float64) error {
	if added == 0 {
		return nil
	}
	if price <= 0 {
		return errors.Wrapf(exception.ErrLedgerInvalidPrice, "entry price %.4f", price)
	}
	if l.pos.Quantity != 0 && sign(l.pos.Quantity) != sign(added) {
		return errors.Wrapf(exception.ErrLedgerScaleOut, "position %d added %d", l.pos.Quantity, added)
	}

	held := abs(l.pos.Quantity)
	next := l.pos.Quantity + added
	l.pos.AvgEntry = (l.pos.AvgEntry*float64(held) + price*float64(abs(added))) / float64(abs(next))
	l.pos.Quantity = next
	l.revalue()
	return nil
}

// Settle closes closed contracts of the open position at exitPrice and
// returns the realized P&L. Settling a flat position is a no-op.
func (l *Ledger) Settle(closed int64, exitPrice float64) (float64, error) {
	if l.pos.Quantity == 0 || closed == 0 {
		return 0, nil
	}
	if exitPrice <= 0 {
		return 0, errors.Wrapf(exception.ErrLedgerInvalidPrice, "exit price %.4f", exitPrice)
	}
	if sign(closed) != sign(l.pos.Quantity) {
		return 0, errors.Wrapf(exception.ErrInvalidArgument, "close %d against position %d", closed, l.pos.Quantity)
	}
	if abs(closed) > abs(l.pos.Quantity) {
		return 0, errors.Wrapf(exception.ErrLedgerOverClose, "close %d against position %d", closed, l.pos.Quantity)
	}

	pnl := inversePnL(closed, l.pos.AvgEntry, exitPrice)
	l.pos.Realized += pnl
	switch {
	case pnl > 0:
		l.wins++
	case pnl < 0:
		l.losses++
	}

	l.pos.Quantity -= closed
	if l.pos.Quantity == 0 {
		l.pos.AvgEntry = 0
	}

	if l.initPrice > 0 {
		base := l.cfg.StartCapital * l.initPrice
		l.realizedPct = (l.EquityBase()*exitPrice - base) / base * 100
		l.lastPrice = exitPrice
	}
	l.revalue()
	return pnl, nil
}

// ApplyFill books a signed fill. A fill against the open position settles the
// overlapping part and opens the remainder on the other side.
func (l *Ledger) ApplyFill(delta int64, price float64) (float64, error) {
	if delta == 0 {
		return 0, nil
	}
	if l.pos.Quantity == 0 || sign(l.pos.Quantity) == sign(delta) {
		return 0, l.UpdateAverageEntry(delta, price)
	}

	closed := min(abs(delta), abs(l.pos.Quantity)) * sign(l.pos.Quantity)
	pnl, err := l.Settle(closed, price)
	if err != nil {
		return 0, err
	}
	if rest := delta + closed; rest != 0 {
		if err := l.UpdateAverageEntry(rest, price); err != nil {
			return pnl, err
		}
	}
	return pnl, nil
}

func (l *Ledger) revalue() {
	l.unrealized = 0
	if l.pos.Quantity != 0 && l.lastPrice > 0 && l.pos.AvgEntry > 0 {
		l.unrealized = inversePnL(l.pos.Quantity, l.pos.AvgEntry, l.lastPrice)
	}

	equity := l.EquityWithUnrealized()
	if equity <= 0 {
		l.pos.Bankrupt = true
	}

	if l.initPrice > 0 && l.cfg.StartCapital > 0 {
		l.totalPct = equity*l.lastPrice/(l.cfg.StartCapital*l.initPrice)*100 - 100
		l.baselinePct = (l.lastPrice - l.initPrice) / l.initPrice * 100
	}
}

func (l *Ledger) Position() Position { return l.pos }

func (l *Ledger) Quantity() int64 { return l.pos.Quantity }

func (l *Ledger) AvgEntry() float64 { return l.pos.AvgEntry }

func (l *Ledger) Realized() float64 { return l.pos.Realized }

func (l *Ledger) Unrealized() float64 { return l.unrealized }

func (l *Ledger) Bankrupt() bool { return l.pos.Bankrupt }

func (l *Ledger) InitPrice() float64 { return l.initPrice }

func (l *Ledger) LastPrice() float64 { return l.lastPrice }

func (l *Ledger) StartCapital() float64 { return l.cfg.StartCapital }

// EquityBase is starting capital plus realized P&L.
func (l *Ledger) EquityBase() float64 {
	return l.cfg.StartCapital + l.pos.Realized
}

// EquityWithUnrealized adds the open position's unrealized P&L.
func (l *Ledger) EquityWithUnrealized() float64 {
	return l.EquityBase() + l.unrealized
}

// EquityQuote values EquityWithUnrealized at the last price.
func (l *Ledger) EquityQuote() float64 {
	return l.EquityWithUnrealized() * l.lastPrice
}

// TotalBenefitPct is the quote-currency return against the starting capital
// valued at the start price.
func (l *Ledger) TotalBenefitPct() float64 { return l.totalPct }

// RealizedBenefitPct is TotalBenefitPct as of the last settlement.
func (l *Ledger) RealizedBenefitPct() float64 { return l.realizedPct }

// BaselinePct is the return of holding the starting capital.
func (l *Ledger) BaselinePct() float64 { return l.baselinePct }

// UnrealizedBenefitPct is the open position's P&L as a percentage of the
// starting capital valued at the start price.
func (l *Ledger) UnrealizedBenefitPct() float64 {
	if l.initPrice <= 0 || l.cfg.StartCapital <= 0 {
		return 0
	}
	return l.unrealized * l.lastPrice / (l.cfg.StartCapital * l.initPrice) * 100
}

// Record returns win and loss counts of settlements.
func (l *Ledger) Record() (wins, losses int) {
	return l.wins, l.losses
}

// Point builds the equity curve entry for date at the current valuation.
func (l *Ledger) Point(date string, closePrice, movingAverage float64) Point {
	return Point{
		Date:            date,
		ClosePrice:      closePrice,
		TotalBenefitPct: l.totalPct,
		Position:        l.pos.Quantity,
		MovingAverage:   movingAverage,
		BaselinePct:     l.baselinePct,
	}
}

// inversePnL returns the base-asset P&L of qty contracts moved from entry to exit.
func inversePnL(qty int64, entry, exit float64) float64 {
	if entry <= 0 || exit <= 0 {
		return 0
	}
	return float64(qty) * (1/entry - 1/exit)
}

func sign(v int64) int64 {
	if v < 0 {
		return -1
	}
	return 1
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
