package ops

import (
	"os"
	"time"

	"trader/internal/backtest"
	"trader/internal/gateway/bitmex"
	"trader/internal/journal"
	"trader/internal/ledger"
	"trader/internal/market"
	"trader/internal/reconcile"
	"trader/internal/risk"
	"trader/internal/strategy"
	"trader/pkg/exception"

	"github.com/joho/godotenv"
	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables holding secrets. They are never read from the YAML
// file.
const (
	EnvAPIKey     = "BITMEX_API_KEY"
	EnvAPISecret  = "BITMEX_API_SECRET"
	EnvJournalDSN = "JOURNAL_DSN"
)

// Config is the resolved, immutable run configuration.
type Config struct {
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Loop      LoopConfig      `yaml:"loop"`
	Ledger    ledger.Config   `yaml:"ledger"`
	Strategy  strategy.Config `yaml:"strategy"`
	Risk      risk.Config     `yaml:"risk"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Journal   journal.Option  `yaml:"journal"`
	Board     BoardConfig     `yaml:"board"`
	Profiling ProfilingConfig `yaml:"profiling"`

	Credentials Credentials `yaml:"-"`
}

// ExchangeConfig selects the venue and contract.
type ExchangeConfig struct {
	BaseURL       string        `yaml:"base_url"`
	RealtimeURL   string        `yaml:"realtime_url"`
	Testnet       bool          `yaml:"testnet"`
	Symbol        string        `yaml:"symbol"`
	OrderIDPrefix string        `yaml:"order_id_prefix"`
	PostOnly      bool          `yaml:"post_only"`
	Timeout       time.Duration `yaml:"timeout"`
	DryRun        bool          `yaml:"dry_run"`
	DryBTC        float64       `yaml:"dry_btc"`
}

// LoopConfig paces the live loop.
type LoopConfig struct {
	Interval         time.Duration `yaml:"interval"`
	APIRestInterval  time.Duration `yaml:"api_rest_interval"`
	APIErrorInterval time.Duration `yaml:"api_error_interval"`
	AmendRetryDelay  time.Duration `yaml:"amend_retry_delay"`
	SnapshotPath     string        `yaml:"snapshot_path"`
}

type ReconcileConfig struct {
	RelistInterval float64 `yaml:"relist_interval"`
	QtyTolerance   int64   `yaml:"qty_tolerance"`
}

// BacktestConfig locates the historical records and the report output.
type BacktestConfig struct {
	Data       string  `yaml:"data"`
	FilePrefix string  `yaml:"file_prefix"`
	Report     string  `yaml:"report"`
	RiskFree   float64 `yaml:"risk_free"`
	Workers    int     `yaml:"workers"`
}

// FetchConfig bounds a history download. Dates are YYYY-MM-DD, end exclusive.
type FetchConfig struct {
	StartDate string        `yaml:"start_date"`
	EndDate   string        `yaml:"end_date"`
	BinSize   string        `yaml:"bin_size"`
	Out       string        `yaml:"out"`
	Pause     time.Duration `yaml:"pause"`
}

type RecorderConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Dir        string `yaml:"dir"`
	FilePrefix string `yaml:"file_prefix"`
}

type BoardConfig struct {
	Addr string `yaml:"addr"`
}

type ProfilingConfig struct {
	ServerAddress string `yaml:"server_address"`
	AppName       string `yaml:"app_name"`
}

// Credentials are loaded from the environment.
type Credentials struct {
	APIKey     string
	APISecret  string
	JournalDSN string
}

// Default returns the stock settings.
func Default() Config {
	return Config{
		Exchange: ExchangeConfig{
			Testnet:       true,
			Symbol:        "XBTUSD",
			OrderIDPrefix: "mm_bitmex_",
			Timeout:       7 * time.Second,
			DryBTC:        50,
		},
		Loop: LoopConfig{
			Interval:         300 * time.Second,
			APIRestInterval:  time.Second,
			APIErrorInterval: 10 * time.Second,
			AmendRetryDelay:  500 * time.Millisecond,
		},
		Ledger:   ledger.Config{StartCapital: 0.5},
		Strategy: strategy.DefaultConfig(strategy.KindMovingAverage),
		Risk: risk.Config{
			MinPosition: -10000,
			MaxPosition: 10000,
		},
		Reconcile: ReconcileConfig{RelistInterval: reconcile.DefaultRelistInterval},
		Backtest: BacktestConfig{
			Data:       "data",
			FilePrefix: "quote",
			RiskFree:   3.25,
		},
		Fetch: FetchConfig{
			StartDate: "2017-08-01",
			EndDate:   "2017-09-19",
			BinSize:   "5m",
			Out:       "data",
			Pause:     time.Second,
		},
		Recorder: RecorderConfig{Dir: "data", FilePrefix: "quote"},
		Profiling: ProfilingConfig{
			AppName: "trader",
		},
	}
}

// Load reads path over the defaults and then the credentials from the
// environment. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(exception.ErrConfigInvalid, "decode config %s: %s", path, err.Error())
		}
	}
	cfg.Credentials = LoadCredentials()
	cfg.Journal.ConnString = cfg.Credentials.JournalDSN
	return cfg, nil
}

// LoadCredentials reads the secrets, loading .env first when present.
func LoadCredentials() Credentials {
	_ = godotenv.Load()
	return Credentials{
		APIKey:     os.Getenv(EnvAPIKey),
		APISecret:  os.Getenv(EnvAPISecret),
		JournalDSN: os.Getenv(EnvJournalDSN),
	}
}

// Validate checks the settings shared by every command.
func (c Config) Validate() error {
	if c.Exchange.Symbol == "" {
		return errors.Wrap(exception.ErrConfigInvalid, "exchange.symbol is empty")
	}
	if len(c.Exchange.OrderIDPrefix) > 13 {
		return errors.Wrap(exception.ErrConfigInvalid, "exchange.order_id_prefix must be at most 13 characters")
	}
	if c.Ledger.StartCapital <= 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "ledger.start_capital must be > 0")
	}
	if c.Loop.Interval <= 0 || c.Loop.APIErrorInterval <= 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "loop intervals must be > 0")
	}
	if c.Reconcile.RelistInterval < 0 || c.Reconcile.QtyTolerance < 0 {
		return errors.Wrap(exception.ErrConfigInvalid, "reconcile bounds must be >= 0")
	}
	if c.Risk.CheckPositionLimits && c.Risk.MinPosition >= c.Risk.MaxPosition {
		return errors.Wrap(exception.ErrConfigInvalid, "risk.min_position must be < risk.max_position")
	}
	return c.Strategy.Validate()
}

// ValidateLive additionally requires credentials unless orders stay local.
func (c Config) ValidateLive() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Exchange.DryRun {
		return nil
	}
	if c.Credentials.APIKey == "" || c.Credentials.APISecret == "" {
		return errors.Wrapf(exception.ErrConfigMissingSecret, "set %s and %s", EnvAPIKey, EnvAPISecret)
	}
	return nil
}

// FetchRange parses the fetch dates.
func (c Config) FetchRange() (start, end time.Time, err error) {
	start, err = time.Parse(time.DateOnly, c.Fetch.StartDate)
	if err != nil {
		return start, end, errors.Wrapf(exception.ErrConfigInvalid, "fetch.start_date %q", c.Fetch.StartDate)
	}
	end, err = time.Parse(time.DateOnly, c.Fetch.EndDate)
	if err != nil {
		return start, end, errors.Wrapf(exception.ErrConfigInvalid, "fetch.end_date %q", c.Fetch.EndDate)
	}
	if !start.Before(end) {
		return start, end, errors.Wrap(exception.ErrConfigInvalid, "fetch.start_date must be before fetch.end_date")
	}
	return start, end, nil
}

// BaseURL returns the configured REST endpoint.
func (c Config) BaseURL() string {
	switch {
	case c.Exchange.BaseURL != "":
		return c.Exchange.BaseURL
	case c.Exchange.Testnet:
		return bitmex.TestnetBaseURL
	default:
		return bitmex.BaseURL
	}
}

// RealtimeURL returns the configured stream endpoint.
func (c Config) RealtimeURL() string {
	switch {
	case c.Exchange.RealtimeURL != "":
		return c.Exchange.RealtimeURL
	case c.Exchange.Testnet:
		return bitmex.TestnetRealtimeURL
	default:
		return bitmex.RealtimeURL
	}
}

// BitMEX builds the exchange client settings.
func (c Config) BitMEX() bitmex.Config {
	return bitmex.Config{
		BaseURL:       c.BaseURL(),
		APIKey:        c.Credentials.APIKey,
		APISecret:     c.Credentials.APISecret,
		Symbol:        c.Exchange.Symbol,
		OrderIDPrefix: c.Exchange.OrderIDPrefix,
		PostOnly:      c.Exchange.PostOnly,
		Timeout:       c.Exchange.Timeout,
	}
}

// BacktestRun builds the simulation settings for inst.
func (c Config) BacktestRun(inst market.Instrument) backtest.Config {
	return backtest.Config{
		StartCapital: c.Ledger.StartCapital,
		Instrument:   inst,
		Strategy:     c.Strategy,
		RiskFree:     c.Backtest.RiskFree,
	}
}

// Instrument is the contract description used when the exchange is not
// queried, as in backtests. XBTUSD trades in half dollar ticks.
func (c Config) Instrument() market.Instrument {
	return market.Instrument{Symbol: c.Exchange.Symbol, TickSize: 0.5, TickLog: 1}
}
