package perf

import (
	"bytes"
	"testing"

	"trader/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxDrawdown(t *testing.T) {
	testCases := []struct {
		desc     string
		benefits []float64
		expected float64
	}{
		// equity 100, 110, 90, 95 expressed as benefit over the 100 baseline
		{"reference curve", []float64{0, 10, -10, -5}, 20.0 / 110 * 100},
		{"monotonic rise", []float64{1, 2, 3, 4}, 0},
		{"never positive", []float64{-1, -5, -2}, 0},
		{"last element trough", []float64{5, 20, 10, 30, 0}, 30.0 / 130 * 100},
		{"empty", nil, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.InDelta(t, tc.expected, MaxDrawdown(tc.benefits), 1e-9)
		})
	}

	assert.InDelta(t, 18.18, MaxDrawdown([]float64{0, 10, -10, -5}), 0.01)
}

func TestStdDevAndSharpe(t *testing.T) {
	diffs := Diffs([]float64{0, 2, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, []float64{2, 2, 0, 1, 0, 2, 2}, diffs)

	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
	assert.Equal(t, 0.0, StdDev(nil))
	assert.InDelta(t, (13.25-DefaultRiskFree)/2, Sharpe(13.25, DefaultRiskFree, 2), 1e-9)
	assert.Equal(t, 0.0, Sharpe(10, DefaultRiskFree, 0))
}

func TestAnalyze(t *testing.T) {
	points := []ledger.Point{
		{Date: "2017-08-01", TotalBenefitPct: 0, BaselinePct: 0},
		{Date: "2017-08-02", TotalBenefitPct: 10, BaselinePct: 4},
		{Date: "2017-08-03", TotalBenefitPct: -10, BaselinePct: 2},
		{Date: "2017-08-04", TotalBenefitPct: -5, BaselinePct: 3},
	}

	s := NewAnalyzer(0).Analyze(points, 3, 1)
	assert.Equal(t, 4, s.Days)
	assert.Equal(t, -5.0, s.FinalBenefitPct)
	assert.Equal(t, 3.0, s.BaselinePct)
	assert.Equal(t, -10.0, s.MaxLossPct)
	assert.InDelta(t, 18.18, s.MaxDrawdownPct, 0.01)
	assert.Equal(t, 0.75, s.WinRatio)
	assert.InDelta(t, StdDev([]float64{10, -20, 5}), s.StdDev, 1e-9)
	assert.InDelta(t, (-5-DefaultRiskFree)/s.StdDev, s.Sharpe, 1e-9)
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	err := WriteReport(&buf, []ledger.Point{
		{ClosePrice: 2854.7, TotalBenefitPct: 1.234, Position: -500, MovingAverage: 2800.126, BaselinePct: -0.5},
		{ClosePrice: 3000, TotalBenefitPct: 0, Position: 0, MovingAverage: 0, BaselinePct: 5.09},
	})
	require.NoError(t, err)
	assert.Equal(t, "2854.70 1.23 -500 2800.13 -0.50\n3000.00 0.00 0 0.00 5.09\n", buf.String())
}
