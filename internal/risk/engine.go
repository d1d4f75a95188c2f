package risk

import (
	"strconv"
	"time"

	"trader/internal/order"
)

// Config defines the pre-trade limits.
type Config struct {
	KillSwitch          bool          `yaml:"kill_switch"`
	MaxOrderQty         int64         `yaml:"max_order_qty"`
	CheckPositionLimits bool          `yaml:"check_position_limits"`
	MinPosition         int64         `yaml:"min_position"`
	MaxPosition         int64         `yaml:"max_position"`
	OrderRateLimit      int           `yaml:"order_rate_limit"`
	OrderRateWindow     time.Duration `yaml:"order_rate_window"`
}

// Reason explains a denied order.
type Reason int8

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonRateLimit
	ReasonMaxQty
	ReasonPositionLimit
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonKillSwitch:
		return "kill_switch"
	case ReasonRateLimit:
		return "rate_limit"
	case ReasonMaxQty:
		return "max_qty"
	case ReasonPositionLimit:
		return "position_limit"
	default:
		return "unknown(" + strconv.Itoa(int(r)) + ")"
	}
}

// Decision is the verdict for one order.
type Decision struct {
	Allow  bool
	Reason Reason
	Order  order.Order
}

// Engine evaluates risk decisions. It is not safe for concurrent use.
type Engine struct {
	cfg             Config
	rateWindowStart int64
	rateCount       int
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate checks one order against the limits given the current position.
// now is unix nanos; zero means the wall clock.
func (e *Engine) Evaluate(o order.Order, position int64, now int64) Decision {
	d := Decision{Allow: true, Order: o}
	if now == 0 {
		now = time.Now().UTC().UnixNano()
	}

	if e.cfg.KillSwitch {
		return deny(d, ReasonKillSwitch)
	}

	if e.cfg.OrderRateLimit > 0 && e.cfg.OrderRateWindow > 0 {
		window := int64(e.cfg.OrderRateWindow)
		if e.rateWindowStart == 0 || now-e.rateWindowStart >= window {
			e.rateWindowStart = now
			e.rateCount = 0
		}
		e.rateCount++
		if e.rateCount > e.cfg.OrderRateLimit {
			return deny(d, ReasonRateLimit)
		}
	}

	if e.cfg.MaxOrderQty > 0 && o.Quantity > e.cfg.MaxOrderQty {
		return deny(d, ReasonMaxQty)
	}

	if e.cfg.CheckPositionLimits {
		switch o.Side {
		case order.SideBuy:
			if position >= e.cfg.MaxPosition {
				return deny(d, ReasonPositionLimit)
			}
		case order.SideSell:
			if position <= e.cfg.MinPosition {
				return deny(d, ReasonPositionLimit)
			}
		}
	}

	return d
}

// Filter keeps the allowed orders and returns the denied decisions.
func (e *Engine) Filter(orders []order.Order, position int64, now int64) ([]order.Order, []Decision) {
	allowed := make([]order.Order, 0, len(orders))
	var denied []Decision
	for _, o := range orders {
		d := e.Evaluate(o, position, now)
		if !d.Allow {
			denied = append(denied, d)
			continue
		}
		allowed = append(allowed, o)
	}
	return allowed, denied
}

func deny(d Decision, reason Reason) Decision {
	d.Allow = false
	d.Reason = reason
	return d
}
