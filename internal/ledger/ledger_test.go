package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"trader/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

func newStarted(t *testing.T, capital, price float64) *Ledger {
	t.Helper()
	l := New(Config{StartCapital: capital})
	require.NoError(t, l.Start(price))
	return l
}

func TestUpdateAverageEntryWeightedMean(t *testing.T) {
	testCases := []struct {
		desc   string
		trades [][2]float64
	}{
		{"long adds", [][2]float64{{100, 1000}, {200, 1100}, {300, 1200}}},
		{"short adds", [][2]float64{{-50, 2000}, {-25, 1900}, {-125, 1850}, {-1, 1700}}},
		{"single", [][2]float64{{7, 3333.5}}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			l := newStarted(t, 0.5, 1000)
			var qty, notional float64
			for _, trade := range tc.trades {
				require.NoError(t, l.UpdateAverageEntry(int64(trade[0]), trade[1]))
				q := trade[0]
				if q < 0 {
					q = -q
				}
				qty += q
				notional += q * trade[1]
			}
			assert.InDelta(t, notional/qty, l.AvgEntry(), 1e-9)
		})
	}
}

func TestUpdateAverageEntryRejectsScaleOut(t *testing.T) {
	l := newStarted(t, 0.5, 1000)
	require.NoError(t, l.UpdateAverageEntry(100, 1000))

	err := l.UpdateAverageEntry(-10, 1100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrLedgerScaleOut))
	assert.Equal(t, int64(100), l.Quantity())
	assert.Equal(t, 1000.0, l.AvgEntry())
}

func TestSettleFullCloseOnce(t *testing.T) {
	l := newStarted(t, 0.5, 1000)
	require.NoError(t, l.UpdateAverageEntry(100, 1000))
	require.NoError(t, l.UpdateAverageEntry(200, 1100))
	require.NoError(t, l.UpdateAverageEntry(300, 1200))
	avg := l.AvgEntry()

	pnl, err := l.Settle(600, 1300)
	require.NoError(t, err)
	expected := 600 * (1/avg - 1/1300.0)
	assert.InDelta(t, expected, pnl, 1e-12)
	assert.Equal(t, int64(0), l.Quantity())
	assert.Equal(t, 0.0, l.AvgEntry())
	assert.InDelta(t, expected, l.Realized(), 1e-12)

	for i := 0; i < 3; i++ {
		again, err := l.Settle(600, 900)
		require.NoError(t, err)
		assert.Equal(t, 0.0, again)
	}
	assert.InDelta(t, expected, l.Realized(), 1e-12)

	wins, losses := l.Record()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 0, losses)
}

func TestSettlePartialKeepsEntry(t *testing.T) {
	l := newStarted(t, 0.5, 1000)
	require.NoError(t, l.UpdateAverageEntry(-400, 1000))

	pnl, err := l.Settle(-100, 1100)
	require.NoError(t, err)
	assert.Less(t, pnl, 0.0)
	assert.Equal(t, int64(-300), l.Quantity())
	assert.Equal(t, 1000.0, l.AvgEntry())

	_, err = l.Settle(-500, 1100)
	assert.True(t, errors.Is(err, exception.ErrLedgerOverClose))
	_, err = l.Settle(100, 1100)
	assert.True(t, errors.Is(err, exception.ErrInvalidArgument))

	_, losses := l.Record()
	assert.Equal(t, 1, losses)
}

func TestApplyFillReversal(t *testing.T) {
	l := newStarted(t, 0.5, 1000)
	_, err := l.ApplyFill(500, 1000)
	require.NoError(t, err)

	pnl, err := l.ApplyFill(-800, 1100)
	require.NoError(t, err)
	assert.InDelta(t, 500*(1/1000.0-1/1100.0), pnl, 1e-12)
	assert.Equal(t, int64(-300), l.Quantity())
	assert.Equal(t, 1100.0, l.AvgEntry())
}

func TestBenefitPercentages(t *testing.T) {
	l := newStarted(t, 0.5, 1000)
	l.AccrueOnPriceMove(1100)
	assert.InDelta(t, 10, l.TotalBenefitPct(), 1e-9)
	assert.InDelta(t, 10, l.BaselinePct(), 1e-9)
	assert.Equal(t, 0.0, l.UnrealizedBenefitPct())

	require.NoError(t, l.UpdateAverageEntry(-550, 1100))
	l.AccrueOnPriceMove(1000)
	assert.InDelta(t, -550*(1/1100.0-1/1000.0), l.Unrealized(), 1e-12)
	assert.Greater(t, l.UnrealizedBenefitPct(), 0.0)
	assert.InDelta(t, 0, l.BaselinePct(), 1e-9)
}

func TestAccrueSetsBankrupt(t *testing.T) {
	l := newStarted(t, 0.01, 1000)
	require.NoError(t, l.UpdateAverageEntry(100, 1000))
	l.AccrueOnPriceMove(990)
	assert.False(t, l.Bankrupt())

	l.AccrueOnPriceMove(900)
	assert.True(t, l.Bankrupt())
	assert.LessOrEqual(t, l.EquityWithUnrealized(), 0.0)
}

func TestSnapshotRestore(t *testing.T) {
	l := newStarted(t, 0.5, 1000)
	require.NoError(t, l.UpdateAverageEntry(300, 1050))
	_, err := l.Settle(100, 1200)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ledger", "snapshot.json")
	require.NoError(t, WriteSnapshot(path, l.Snapshot()))
	snap, err := ReadSnapshot(path)
	require.NoError(t, err)

	restored := New(Config{StartCapital: 0.5})
	restored.Restore(snap)
	assert.Equal(t, l.Position(), restored.Position())
	assert.Equal(t, l.InitPrice(), restored.InitPrice())
	assert.InDelta(t, l.TotalBenefitPct(), restored.TotalBenefitPct(), 1e-9)
	wins, _ := restored.Record()
	assert.Equal(t, 1, wins)
}

func TestReadSnapshotErrors(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o644))

	_, err := ReadSnapshot(corrupt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode ledger snapshot")

	_, err = ReadSnapshot(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCurveAppendOnly(t *testing.T) {
	c := NewCurve(2)
	c.Append(Point{Date: "2017-08-01", TotalBenefitPct: 1})
	c.Append(Point{Date: "2017-08-02", TotalBenefitPct: 2})

	points := c.Points()
	points[0].TotalBenefitPct = 99
	assert.Equal(t, []float64{1, 2}, c.Benefits())

	last, ok := c.Last()
	require.True(t, ok)
	assert.Equal(t, "2017-08-02", last.Date)
}
