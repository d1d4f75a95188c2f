package report

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trader/internal/bus"
	"trader/internal/ledger"
	"trader/internal/obs"
	"trader/internal/perf"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

func testBoard() Board {
	curve := bus.NewLatest[ledger.Point](0)
	curve.Add(ledger.Point{Date: "2020-01-01", ClosePrice: 9000, TotalBenefitPct: 0})
	curve.Add(ledger.Point{Date: "2020-01-02", ClosePrice: 9100, TotalBenefitPct: 10})
	curve.Add(ledger.Point{Date: "2020-01-03", ClosePrice: 9050, TotalBenefitPct: -10})

	metrics := obs.NewMetrics()
	metrics.ObserveCycle(time.Millisecond, nil)

	return Board{
		Curve:    curve,
		Record:   func() (int, int) { return 3, 1 },
		Metrics:  metrics,
		Analyzer: perf.NewAnalyzer(0),
	}
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestBoardRoutes(t *testing.T) {
	s := NewServer(":0", testBoard())

	testCases := []struct {
		desc     string
		path     string
		status   int
		contains string
	}{
		{"health", "/healthz", http.StatusOK, `"status":"ok"`},
		{"equity", "/equity", http.StatusOK, `"date":"2020-01-02"`},
		{"metrics", "/metrics", http.StatusOK, `"cycles":1`},
		{"prometheus", "/metrics/prometheus", http.StatusOK, "trader_cycles_total 1"},
		{"unknown", "/nope", http.StatusNotFound, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			rec := get(t, s, tc.path)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.contains)
		})
	}
}

func TestBoardSummary(t *testing.T) {
	s := NewServer(":0", testBoard())
	rec := get(t, s, "/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data perf.Summary `json:"data"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Data.Days)
	assert.Equal(t, -10.0, body.Data.FinalBenefitPct)
	assert.Equal(t, 3, body.Data.Wins)
	assert.Equal(t, 1, body.Data.Losses)
	assert.InDelta(t, 18.18, body.Data.MaxDrawdownPct, 0.01)
}

func TestBoardHalted(t *testing.T) {
	board := testBoard()
	board.Health = func() error { return errors.New("bankrupt") }
	s := NewServer(":0", board)

	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "bankrupt")
}

func TestBoardEmpty(t *testing.T) {
	s := NewServer(":0", Board{})
	rec := get(t, s, "/equity")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary("backtest pivot", perf.Summary{Days: 30, FinalBenefitPct: 12.5, Wins: 4, Losses: 2, WinRatio: 2})
	assert.Contains(t, out, "backtest pivot")
	assert.Contains(t, out, "12.50%")
	assert.Contains(t, out, "4 / 2")
	assert.True(t, strings.Count(out, "\n") >= 9)
}
