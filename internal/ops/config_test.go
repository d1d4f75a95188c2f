package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trader/internal/gateway/bitmex"
	"trader/internal/strategy"
	"trader/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yanun0323/errors"
)

const sampleConfig = `
exchange:
  symbol: XBTUSD
  testnet: false
  dry_run: true
  timeout: 3s
loop:
  interval: 5s
  api_error_interval: 2s
ledger:
  start_capital: 1.5
strategy:
  kind: pivot
  pivot:
    f1: 0.3
    size: 200
    stop_loss_pct: 0.05
reconcile:
  qty_tolerance: 10
`

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "trader.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, strategy.KindMovingAverage, cfg.Strategy.Kind)
	assert.Equal(t, 300*time.Second, cfg.Loop.Interval)
	assert.Equal(t, 10*time.Second, cfg.Loop.APIErrorInterval)
	assert.Equal(t, 0.01, cfg.Reconcile.RelistInterval)
	assert.Equal(t, bitmex.TestnetBaseURL, cfg.BaseURL())
	assert.Equal(t, bitmex.TestnetRealtimeURL, cfg.RealtimeURL())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3*time.Second, cfg.Exchange.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Loop.Interval)
	assert.Equal(t, 1.5, cfg.Ledger.StartCapital)
	assert.Equal(t, strategy.KindPivot, cfg.Strategy.Kind)
	assert.Equal(t, 0.3, cfg.Strategy.Pivot.F1)
	// untouched keys keep their defaults
	assert.Equal(t, 0.07, cfg.Strategy.Pivot.F2)
	assert.Equal(t, int64(10), cfg.Reconcile.QtyTolerance)
	assert.Equal(t, bitmex.BaseURL, cfg.BaseURL())

	run := cfg.BacktestRun(cfg.Instrument())
	assert.Equal(t, 1.5, run.StartCapital)
	assert.Equal(t, int32(1), run.Instrument.TickLog)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	path := writeConfig(t, t.TempDir(), "loop: [unclosed")
	_, err = Load(path)
	assert.True(t, errors.Is(err, exception.ErrConfigInvalid))
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		desc   string
		mutate func(*Config)
		want   error
	}{
		{"defaults", func(*Config) {}, nil},
		{"no symbol", func(c *Config) { c.Exchange.Symbol = "" }, exception.ErrConfigInvalid},
		{"long prefix", func(c *Config) { c.Exchange.OrderIDPrefix = "abcdefghijklmn" }, exception.ErrConfigInvalid},
		{"no capital", func(c *Config) { c.Ledger.StartCapital = 0 }, exception.ErrConfigInvalid},
		{"no interval", func(c *Config) { c.Loop.Interval = 0 }, exception.ErrConfigInvalid},
		{"negative tolerance", func(c *Config) { c.Reconcile.QtyTolerance = -1 }, exception.ErrConfigInvalid},
		{"inverted limits", func(c *Config) {
			c.Risk.CheckPositionLimits = true
			c.Risk.MinPosition = 10
			c.Risk.MaxPosition = 10
		}, exception.ErrConfigInvalid},
		{"unknown strategy", func(c *Config) { c.Strategy.Kind = "turtle" }, exception.ErrConfigUnknownStrategy},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestValidateLiveCredentials(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvAPISecret, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, errors.Is(cfg.ValidateLive(), exception.ErrConfigMissingSecret))

	cfg.Exchange.DryRun = true
	assert.NoError(t, cfg.ValidateLive())

	t.Setenv(EnvAPIKey, "key")
	t.Setenv(EnvAPISecret, "secret")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.NoError(t, cfg.ValidateLive())
	assert.Equal(t, "key", cfg.BitMEX().APIKey)
}

func TestFetchRange(t *testing.T) {
	cfg := Default()
	start, end, err := cfg.FetchRange()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2017, 9, 19, 0, 0, 0, 0, time.UTC), end)

	cfg.Fetch.EndDate = cfg.Fetch.StartDate
	_, _, err = cfg.FetchRange()
	assert.True(t, errors.Is(err, exception.ErrConfigInvalid))

	cfg.Fetch.StartDate = "yesterday"
	_, _, err = cfg.FetchRange()
	assert.True(t, errors.Is(err, exception.ErrConfigInvalid))
}

func TestWatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleConfig)
	current, err := Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan Config, 4)
	require.NoError(t, Watch(ctx, path, current, 20*time.Millisecond, func(c Config) { changed <- c }))

	// invalid content is ignored
	writeConfig(t, dir, "ledger:\n  start_capital: -1\n")
	writeConfig(t, dir, sampleConfig+"\nbacktest:\n  risk_free: 4.5\n")

	select {
	case cfg := <-changed:
		assert.Equal(t, 4.5, cfg.Backtest.RiskFree)
	case <-time.After(3 * time.Second):
		t.Fatal("config change not delivered")
	}
}
