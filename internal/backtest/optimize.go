package backtest

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"trader/internal/market"
	"trader/internal/strategy"
	"trader/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"
)

// Range is an inclusive parameter sweep.
type Range struct {
	From float64 `yaml:"from"`
	To   float64 `yaml:"to"`
	Step float64 `yaml:"step"`
}

// Values expands the range. Values are rounded to 6 decimals so float steps
// do not drift.
func (r Range) Values() []float64 {
	if r.Step <= 0 || r.To < r.From {
		return []float64{r.From}
	}
	n := int(math.Floor((r.To-r.From)/r.Step+1e-9)) + 1
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, market.Round(r.From+float64(i)*r.Step, 6))
	}
	return out
}

// Grid is the pivot factor search space.
type Grid struct {
	F1 Range `yaml:"f1"`
	F2 Range `yaml:"f2"`
	F3 Range `yaml:"f3"`
}

// DefaultGrid is the stock R-Breaker factor sweep.
func DefaultGrid() Grid {
	return Grid{
		F1: Range{From: 0.20, To: 0.50, Step: 0.02},
		F2: Range{From: 0, To: 0.20, Step: 0.02},
		F3: Range{From: 0.10, To: 0.40, Step: 0.02},
	}
}

// Trial is the outcome of one parameter set.
type Trial struct {
	Pivot           strategy.PivotConfig
	FinalBenefitPct float64
	Sharpe          float64
	MaxDrawdownPct  float64
	Bankrupt        bool
}

// Optimize runs one pivot backtest per grid point, at most limit at a time,
// and returns the trials sorted by final benefit, best first.
func Optimize(ctx context.Context, base Config, grid Grid, ticks []market.Tick, limit int) ([]Trial, error) {
	if base.Strategy.Kind != strategy.KindPivot {
		return nil, errors.Wrapf(exception.ErrConfigInvalid, "optimize supports pivot only, got %q", base.Strategy.Kind)
	}
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	var configs []strategy.PivotConfig
	for _, f1 := range grid.F1.Values() {
		for _, f2 := range grid.F2.Values() {
			for _, f3 := range grid.F3.Values() {
				pc := base.Strategy.Pivot
				pc.F1, pc.F2, pc.F3 = f1, f2, f3
				configs = append(configs, pc)
			}
		}
	}
	logs.Infof("optimize %d parameter sets over %d ticks, limit %d", len(configs), len(ticks), limit)

	var (
		mu     sync.Mutex
		trials = make([]Trial, 0, len(configs))
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)
	for _, pc := range configs {
		eg.Go(func() error {
			cfg := base
			cfg.Strategy.Pivot = pc
			runner, err := NewRunner(cfg)
			if err != nil {
				return err
			}
			res, err := runner.Run(ctx, ticks)
			if err != nil {
				return errors.Wrapf(err, "f1 %.2f f2 %.2f f3 %.2f", pc.F1, pc.F2, pc.F3)
			}

			mu.Lock()
			trials = append(trials, Trial{
				Pivot:           pc,
				FinalBenefitPct: res.Summary.FinalBenefitPct,
				Sharpe:          res.Summary.Sharpe,
				MaxDrawdownPct:  res.Summary.MaxDrawdownPct,
				Bankrupt:        res.Bankrupt,
			})
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if len(trials) == 0 {
		return nil, exception.ErrBacktestNoResults
	}

	sort.Slice(trials, func(i, j int) bool {
		a, b := trials[i], trials[j]
		if a.FinalBenefitPct != b.FinalBenefitPct {
			return a.FinalBenefitPct > b.FinalBenefitPct
		}
		if a.Pivot.F1 != b.Pivot.F1 {
			return a.Pivot.F1 < b.Pivot.F1
		}
		if a.Pivot.F2 != b.Pivot.F2 {
			return a.Pivot.F2 < b.Pivot.F2
		}
		return a.Pivot.F3 < b.Pivot.F3
	})
	best := trials[0]
	logs.Infof("best f1 %.2f f2 %.2f f3 %.2f benefit %.2f%%", best.Pivot.F1, best.Pivot.F2, best.Pivot.F3, best.FinalBenefitPct)
	return trials, nil
}
