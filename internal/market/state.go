package market

import (
	"math"

	"trader/pkg/exception"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
)

// Filter holds the data-glitch bounds applied to incoming ticks.
type Filter struct {
	MaxSpread float64 `yaml:"max_spread"`
	MaxStep   float64 `yaml:"max_step"`
}

// Instrument describes the traded contract.
type Instrument struct {
	Symbol   string
	TickSize float64
	TickLog  int32
}

// State holds the latest accepted quote for one instrument. It is owned by a
// single goroutine.
type State struct {
	filter     Filter
	instrument Instrument
	last       Tick
	accepted   uint64
	rejected   uint64
}

// NewState creates an empty market state.
func NewState(inst Instrument, filter Filter) *State {
	if inst.TickLog == 0 && inst.TickSize > 0 {
		inst.TickLog = TickLog(inst.TickSize)
	}
	return &State{filter: filter, instrument: inst}
}

// Accept validates t against the previous accepted tick and stores it.
// A rejected tick leaves the state untouched.
func (s *State) Accept(t Tick) error {
	if err := s.check(t); err != nil {
		s.rejected++
		return err
	}
	s.last = t
	s.accepted++
	return nil
}

func (s *State) check(t Tick) error {
	if !t.HasQuote() {
		return errors.Wrapf(exception.ErrTickMissingPrice, "bid %.2f ask %.2f", t.BidPrice, t.AskPrice)
	}
	if !t.Complete() {
		return errors.Wrapf(exception.ErrTickMissingField, "bid size %d ask size %d prev close %.2f", t.BidSize, t.AskSize, t.PrevClose)
	}
	if s.filter.MaxSpread > 0 && math.Abs(t.AskPrice-t.BidPrice) > s.filter.MaxSpread {
		return errors.Wrapf(exception.ErrTickSpreadTooWide, "gap %.2f", t.AskPrice-t.BidPrice)
	}
	if s.accepted > 0 && s.filter.MaxStep > 0 {
		if step := math.Abs(t.Mid() - s.last.Mid()); step > s.filter.MaxStep {
			return errors.Wrapf(exception.ErrTickStepTooLarge, "step %.2f", step)
		}
	}
	return nil
}

// Last returns the latest accepted tick.
func (s *State) Last() (Tick, bool) {
	return s.last, s.accepted > 0
}

func (s *State) Mid() float64 { return s.last.Mid() }

func (s *State) Instrument() Instrument { return s.instrument }

// SetInstrument updates contract details received from the exchange.
func (s *State) SetInstrument(inst Instrument) {
	if inst.TickLog == 0 && inst.TickSize > 0 {
		inst.TickLog = TickLog(inst.TickSize)
	}
	s.instrument = inst
}

// Counts returns accepted and rejected tick counts.
func (s *State) Counts() (accepted, rejected uint64) {
	return s.accepted, s.rejected
}

// Round rounds price to the instrument's tick log.
func (s *State) Round(price float64) float64 {
	return Round(price, s.instrument.TickLog)
}

// Round rounds price to places decimals.
func Round(price float64, places int32) float64 {
	v, _ := decimal.NewFromFloat(price).Round(places).Float64()
	return v
}

// TickLog returns the number of decimals carried by tickSize (0.5 -> 1, 0.01 -> 2).
func TickLog(tickSize float64) int32 {
	exp := decimal.NewFromFloat(tickSize).Exponent()
	if exp >= 0 {
		return 0
	}
	return -exp
}
