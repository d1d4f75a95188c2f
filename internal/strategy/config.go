package strategy

import (
	"trader/internal/market"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
)

// Kind selects the active strategy variant.
type Kind string

const (
	KindGrid          Kind = "grid"
	KindDonchian      Kind = "donchian"
	KindMovingAverage Kind = "moving_average"
	KindPivot         Kind = "pivot"
)

// Config is the immutable strategy configuration.
type Config struct {
	Kind          Kind                `yaml:"kind"`
	Filter        market.Filter       `yaml:"filter"`
	Grid          GridConfig          `yaml:"grid"`
	Pyramid       PyramidConfig       `yaml:"pyramid"`
	MovingAverage MovingAverageConfig `yaml:"moving_average"`
	Pivot         PivotConfig         `yaml:"pivot"`
}

// GridConfig shapes the market-making ladder.
type GridConfig struct {
	OrderPairs          int     `yaml:"order_pairs"`
	StartSize           int64   `yaml:"start_size"`
	StepSize            int64   `yaml:"step_size"`
	Interval            float64 `yaml:"interval"`
	MinSpread           float64 `yaml:"min_spread"`
	MaintainSpreads     bool    `yaml:"maintain_spreads"`
	CheckPositionLimits bool    `yaml:"check_position_limits"`
	MinPosition         int64   `yaml:"min_position"`
	MaxPosition         int64   `yaml:"max_position"`
}

// PyramidConfig is shared by the Donchian and moving average variants.
type PyramidConfig struct {
	Window        int     `yaml:"window"`
	AddLimit      int     `yaml:"add_limit"`
	UnitFraction  float64 `yaml:"unit_fraction"`
	AddStepATR    float64 `yaml:"add_step_atr"`
	StopATR       float64 `yaml:"stop_atr"`
	TakeProfitPct float64 `yaml:"take_profit_pct"`
}

// MovingAverageConfig holds the crossover specific settings.
type MovingAverageConfig struct {
	Period             int     `yaml:"period"`
	LongLimitMultiple  float64 `yaml:"long_limit_multiple"`
	ShortLimitMultiple float64 `yaml:"short_limit_multiple"`
}

// PivotConfig holds the R-Breaker factors.
type PivotConfig struct {
	F1          float64 `yaml:"f1"`
	F2          float64 `yaml:"f2"`
	F3          float64 `yaml:"f3"`
	Size        int64   `yaml:"size"`
	StopLossPct float64 `yaml:"stop_loss_pct"`
}

// DefaultConfig returns the stock settings for kind.
func DefaultConfig(kind Kind) Config {
	return Config{
		Kind:   kind,
		Filter: market.Filter{MaxSpread: 20, MaxStep: 200},
		Grid: GridConfig{
			OrderPairs:      6,
			StartSize:       100,
			StepSize:        100,
			Interval:        0.005,
			MinSpread:       0.01,
			MaintainSpreads: true,
			MinPosition:     -10000,
			MaxPosition:     10000,
		},
		Pyramid: PyramidConfig{
			Window:        5,
			AddLimit:      10,
			UnitFraction:  0.1,
			AddStepATR:    0.5,
			StopATR:       2,
			TakeProfitPct: 1000,
		},
		MovingAverage: MovingAverageConfig{
			Period:             20,
			LongLimitMultiple:  1,
			ShortLimitMultiple: 2,
		},
		Pivot: PivotConfig{
			F1:          0.35,
			F2:          0.07,
			F3:          0.25,
			Size:        500,
			StopLossPct: 0.1,
		},
	}
}

// Validate checks the settings used by the selected kind.
func (c Config) Validate() error {
	switch c.Kind {
	case KindGrid:
		if c.Grid.OrderPairs <= 0 || c.Grid.StartSize <= 0 || c.Grid.StepSize < 0 {
			return errors.Wrap(exception.ErrConfigInvalid, "grid: order_pairs and start_size must be > 0")
		}
		if c.Grid.Interval <= 0 || c.Grid.MinSpread < 0 {
			return errors.Wrap(exception.ErrConfigInvalid, "grid: interval must be > 0")
		}
		if c.Grid.CheckPositionLimits && c.Grid.MinPosition >= c.Grid.MaxPosition {
			return errors.Wrap(exception.ErrConfigInvalid, "grid: min_position must be < max_position")
		}
	case KindDonchian, KindMovingAverage:
		p := c.Pyramid
		if p.Window <= 0 || p.AddLimit <= 0 {
			return errors.Wrap(exception.ErrConfigInvalid, "pyramid: window and add_limit must be > 0")
		}
		if p.UnitFraction <= 0 || p.AddStepATR <= 0 || p.StopATR <= 0 {
			return errors.Wrap(exception.ErrConfigInvalid, "pyramid: unit_fraction, add_step_atr and stop_atr must be > 0")
		}
		if c.Kind == KindMovingAverage {
			m := c.MovingAverage
			if m.Period <= 0 || m.LongLimitMultiple <= 0 || m.ShortLimitMultiple <= 0 {
				return errors.Wrap(exception.ErrConfigInvalid, "moving_average: period and limit multiples must be > 0")
			}
		}
	case KindPivot:
		if c.Pivot.Size <= 0 || c.Pivot.StopLossPct <= 0 {
			return errors.Wrap(exception.ErrConfigInvalid, "pivot: size and stop_loss_pct must be > 0")
		}
	default:
		return errors.Wrapf(exception.ErrConfigUnknownStrategy, "kind %q", c.Kind)
	}
	if c.Filter.MaxSpread < 0 || c.Filter.MaxStep < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "filter bounds must be >= 0")
	}
	return nil
}
