package backtest

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"

	"trader/internal/market"
	"trader/internal/perf"
	"trader/internal/strategy"
	"trader/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

var day0 = time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC)

var xbt = market.Instrument{Symbol: "XBTUSD", TickSize: 0.5}

func quote(at time.Time, mid, prevClose float64, size int64) market.Tick {
	return market.Tick{
		Time:      at,
		BidPrice:  mid - 0.5,
		BidSize:   size,
		AskPrice:  mid + 0.5,
		AskSize:   size,
		PrevClose: prevClose,
	}
}

// randomWalk returns hourly ticks over days with a fixed seed.
func randomWalk(seed int64, days int) []market.Tick {
	rng := rand.New(rand.NewSource(seed))
	ticks := make([]market.Tick, 0, days*24)
	mid, prevClose := 4000.0, 4000.0
	for d := 0; d < days; d++ {
		for h := 0; h < 24; h++ {
			mid += (rng.Float64() - 0.5) * 30
			ticks = append(ticks, quote(day0.AddDate(0, 0, d).Add(time.Duration(h)*time.Hour), mid, prevClose, 1+rng.Int63n(20000)))
		}
		prevClose = mid
	}
	return ticks
}

func newRunner(t *testing.T, cfg strategy.Config) *Runner {
	t.Helper()
	r, err := NewRunner(Config{StartCapital: 0.5, Instrument: xbt, Strategy: cfg})
	require.NoError(t, err)
	return r
}

func TestRisingMovingAverageScenario(t *testing.T) {
	cfg := strategy.DefaultConfig(strategy.KindMovingAverage)
	cfg.Pyramid.Window = 5
	cfg.Pyramid.AddLimit = 4
	cfg.Pyramid.UnitFraction = 0.001
	cfg.MovingAverage.Period = 5

	var ticks []market.Tick
	prev := 990.0
	for i := 0; i < 30; i++ {
		mid := 1000 + float64(10*i)
		ticks = append(ticks, quote(day0.AddDate(0, 0, i), mid, prev, 1_000_000))
		prev = mid
	}

	res, err := newRunner(t, cfg).Run(context.Background(), ticks)
	require.NoError(t, err)
	require.False(t, res.Bankrupt)

	var entries, adds, shorts int
	for _, f := range res.Fills[:len(res.Fills)-1] {
		switch f.Kind {
		case strategy.IntentEntry:
			entries++
		case strategy.IntentAdd:
			adds++
		}
		if f.Quantity < 0 {
			shorts++
		}
	}
	assert.Equal(t, 1, entries)
	assert.Equal(t, cfg.Pyramid.AddLimit-1, adds)
	assert.Zero(t, shorts)

	settle := res.Fills[len(res.Fills)-1]
	assert.Equal(t, strategy.IntentExit, settle.Kind)
	assert.Less(t, settle.Quantity, int64(0))
	assert.Equal(t, ticks[29].BidPrice, settle.Price)

	require.Len(t, res.Curve, 31)
	final := res.Curve[len(res.Curve)-1]
	assert.Equal(t, int64(0), final.Position)
	assert.Greater(t, final.TotalBenefitPct, 0.0)
	assert.Equal(t, 1, res.Summary.Wins)
	assert.Zero(t, res.Summary.Losses)
	assert.Equal(t, uint64(30), res.Accepted)
}

func TestRunIsDeterministic(t *testing.T) {
	for _, kind := range []strategy.Kind{strategy.KindDonchian, strategy.KindMovingAverage, strategy.KindPivot, strategy.KindGrid} {
		t.Run(string(kind), func(t *testing.T) {
			cfg := strategy.DefaultConfig(kind)
			cfg.Pyramid.UnitFraction = 0.01
			ticks := randomWalk(99, 40)

			var reports [2]bytes.Buffer
			var results [2]Result
			for i := range results {
				res, err := newRunner(t, cfg).Run(context.Background(), ticks)
				require.NoError(t, err)
				require.NoError(t, perf.WriteReport(&reports[i], res.Curve))
				results[i] = res
			}
			assert.Equal(t, reports[0].Bytes(), reports[1].Bytes())
			assert.Equal(t, results[0].Fills, results[1].Fills)
			assert.Equal(t, results[0].Summary, results[1].Summary)
			assert.NotEmpty(t, reports[0].Bytes())
		})
	}
}

func TestBankruptcyHalts(t *testing.T) {
	cfg := strategy.DefaultConfig(strategy.KindPivot)
	cfg.Pivot.Size = 5000
	cfg.Pivot.StopLossPct = 0.5

	crash := day0.AddDate(0, 0, 1).Add(time.Hour)
	ticks := []market.Tick{
		quote(day0, 1000, 1000, 1_000_000),
		quote(day0.AddDate(0, 0, 1), 1001, 1000, 1_000_000),
		quote(crash, 900, 1000, 1_000_000),
		quote(crash.Add(time.Hour), 950, 1000, 1_000_000),
		quote(crash.Add(2*time.Hour), 1000, 1000, 1_000_000),
	}

	res, err := newRunner(t, cfg).Run(context.Background(), ticks)
	require.NoError(t, err)
	assert.True(t, res.Bankrupt)
	assert.Equal(t, crash, res.BankruptAt)
	assert.Equal(t, uint64(3), res.Accepted)
	require.NotEmpty(t, res.Fills)
	assert.Equal(t, strategy.IntentEntry, res.Fills[0].Kind)
	assert.Less(t, res.Curve[len(res.Curve)-1].TotalBenefitPct, -99.0)
}

func TestAllOrNoneNeedsDepth(t *testing.T) {
	cfg := strategy.DefaultConfig(strategy.KindPivot)
	ticks := []market.Tick{
		quote(day0, 1000, 1000, 100),
		quote(day0.AddDate(0, 0, 1), 1001, 1000, 100),
		quote(day0.AddDate(0, 0, 1).Add(time.Hour), 1002, 1000, 100),
	}

	res, err := newRunner(t, cfg).Run(context.Background(), ticks)
	require.NoError(t, err)
	assert.Empty(t, res.Fills)
	assert.Len(t, res.Curve, 3)
}

func TestPartialFillRetriesRemainder(t *testing.T) {
	cfg := strategy.DefaultConfig(strategy.KindMovingAverage)
	cfg.Pyramid.Window = 5
	cfg.Pyramid.UnitFraction = 0.001
	cfg.MovingAverage.Period = 5

	var ticks []market.Tick
	prev := 1000.0
	for d := 0; d < 8; d++ {
		mid := 1000 + float64(10*d)
		for h := 0; h < 3; h++ {
			ticks = append(ticks, quote(day0.AddDate(0, 0, d).Add(time.Duration(h)*time.Hour), mid, prev, 20))
		}
		prev = mid
	}

	res, err := newRunner(t, cfg).Run(context.Background(), ticks)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(res.Fills), 3)

	first := res.Fills[:3]
	assert.Equal(t, strategy.IntentEntry, first[0].Kind)
	assert.Equal(t, int64(20), first[0].Quantity)
	assert.Equal(t, strategy.IntentRemainder, first[1].Kind)
	assert.Equal(t, int64(20), first[1].Quantity)
	assert.Equal(t, strategy.IntentRemainder, first[2].Kind)
	assert.Equal(t, int64(15), first[2].Quantity)
	assert.Equal(t, first[0].Time.Format(time.DateOnly), first[2].Time.Format(time.DateOnly))
}

func TestGridRestingOrdersFill(t *testing.T) {
	cfg := strategy.DefaultConfig(strategy.KindGrid)
	cfg.Grid.OrderPairs = 1

	ticks := []market.Tick{
		{Time: day0, BidPrice: 1000, AskPrice: 1001, BidSize: 500, AskSize: 500, PrevClose: 1000},
		{Time: day0.Add(time.Minute), BidPrice: 994.5, AskPrice: 995.5, BidSize: 500, AskSize: 500},
		{Time: day0.Add(2 * time.Minute), BidPrice: 1002, AskPrice: 1003, BidSize: 500, AskSize: 500},
	}

	res, err := newRunner(t, cfg).Run(context.Background(), ticks)
	require.NoError(t, err)
	require.Len(t, res.Fills, 2)
	assert.Equal(t, Fill{Time: ticks[1].Time, Kind: strategy.IntentQuote, Quantity: 100, Price: 995.5}, res.Fills[0])
	assert.Equal(t, strategy.IntentQuote, res.Fills[1].Kind)
	assert.Equal(t, int64(-100), res.Fills[1].Quantity)
	assert.Equal(t, 1, res.Summary.Wins)
	assert.Len(t, res.Curve, 2)
}

func TestFlatRunEndsWithSettlementPoint(t *testing.T) {
	cfg := strategy.DefaultConfig(strategy.KindPivot)
	ticks := []market.Tick{
		quote(day0, 1000, 1000, 100),
		quote(day0.AddDate(0, 0, 1), 1001, 1000, 100),
		quote(day0.AddDate(0, 0, 2), 1003, 1001, 100),
		quote(day0.AddDate(0, 0, 2).Add(time.Hour), 1004, 1001, 100),
	}

	res, err := newRunner(t, cfg).Run(context.Background(), ticks)
	require.NoError(t, err)
	assert.Empty(t, res.Fills)
	require.Len(t, res.Curve, 4)

	final := res.Curve[3]
	assert.Equal(t, "2017-08-03", final.Date)
	assert.Equal(t, int64(0), final.Position)
	assert.InDelta(t, 1004, final.ClosePrice, 1e-9)
}

func TestRunErrors(t *testing.T) {
	r := newRunner(t, strategy.DefaultConfig(strategy.KindPivot))

	_, err := r.Run(context.Background(), nil)
	assert.True(t, errors.Is(err, exception.ErrBacktestNoTicks))

	bad := quote(day0, 1000, 1000, 1)
	bad.BidPrice = -1
	_, err = r.Run(context.Background(), []market.Tick{bad})
	assert.True(t, errors.Is(err, exception.ErrBacktestNoTicks))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx, randomWalk(1, 2))
	assert.True(t, errors.Is(err, context.Canceled))

	_, err = NewRunner(Config{StartCapital: 0, Strategy: strategy.DefaultConfig(strategy.KindPivot)})
	assert.True(t, errors.Is(err, exception.ErrConfigInvalid))
}
