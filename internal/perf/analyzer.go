package perf

import (
	"math"

	"trader/internal/ledger"
)

// DefaultRiskFree is the annual risk-free return, in percent, subtracted in Sharpe.
const DefaultRiskFree = 3.25

// Summary is the operator-facing result of a run.
type Summary struct {
	Days            int     `json:"days"`
	FinalBenefitPct float64 `json:"finalBenefitPct"`
	BaselinePct     float64 `json:"baselinePct"`
	StdDev          float64 `json:"stdDev"`
	Sharpe          float64 `json:"sharpe"`
	MaxDrawdownPct  float64 `json:"maxDrawdownPct"`
	MaxLossPct      float64 `json:"maxLossPct"`
	Wins            int     `json:"wins"`
	Losses          int     `json:"losses"`
	WinRatio        float64 `json:"winRatio"`
}

// Analyzer derives summary statistics from an equity curve.
type Analyzer struct {
	RiskFree float64
}

// NewAnalyzer returns an analyzer using DefaultRiskFree when riskFree is 0.
func NewAnalyzer(riskFree float64) Analyzer {
	if riskFree == 0 {
		riskFree = DefaultRiskFree
	}
	return Analyzer{RiskFree: riskFree}
}

// Analyze summarizes points and the win/loss record of the run.
func (a Analyzer) Analyze(points []ledger.Point, wins, losses int) Summary {
	benefits := make([]float64, len(points))
	for i, p := range points {
		benefits[i] = p.TotalBenefitPct
	}

	s := Summary{
		Days:           len(points),
		StdDev:         StdDev(Diffs(benefits)),
		MaxDrawdownPct: MaxDrawdown(benefits),
		MaxLossPct:     MaxLoss(benefits),
		Wins:           wins,
		Losses:         losses,
		WinRatio:       WinRatio(wins, losses),
	}
	if n := len(points); n > 0 {
		s.FinalBenefitPct = points[n-1].TotalBenefitPct
		s.BaselinePct = points[n-1].BaselinePct
	}
	s.Sharpe = Sharpe(s.FinalBenefitPct, a.RiskFree, s.StdDev)
	return s
}

// Diffs returns consecutive differences of series.
func Diffs(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		out[i-1] = series[i] - series[i-1]
	}
	return out
}

// StdDev is the population standard deviation.
func StdDev(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var mean float64
	for _, v := range series {
		mean += v
	}
	mean /= float64(len(series))

	var variance float64
	for _, v := range series {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(series)))
}

// Sharpe returns (final - riskFree) / std, or 0 when std is 0.
func Sharpe(final, riskFree, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (final - riskFree) / std
}

// MaxDrawdown scans all pairs i < j of a benefit-percent series where the
// earlier value is a positive peak above the later one. The drop is measured
// against the peak's equity, benefit + 100.
func MaxDrawdown(benefits []float64) float64 {
	var max float64
	for i := 0; i < len(benefits); i++ {
		peak := benefits[i]
		if peak <= 0 {
			continue
		}
		for j := i + 1; j < len(benefits); j++ {
			if benefits[j] >= peak {
				continue
			}
			if dd := (peak - benefits[j]) / (peak + 100) * 100; dd > max {
				max = dd
			}
		}
	}
	return max
}

// MaxLoss returns the lowest benefit of the series, 0 when it never goes negative.
func MaxLoss(benefits []float64) float64 {
	var min float64
	for _, v := range benefits {
		if v < min {
			min = v
		}
	}
	return min
}

// WinRatio returns wins / (wins + losses).
func WinRatio(wins, losses int) float64 {
	if wins+losses == 0 {
		return 0
	}
	return float64(wins) / float64(wins+losses)
}
