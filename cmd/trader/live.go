package main

import (
	"context"
	"sync/atomic"
	"time"

	"trader/internal/bus"
	"trader/internal/gateway"
	"trader/internal/gateway/bitmex"
	"trader/internal/journal"
	"trader/internal/ledger"
	"trader/internal/live"
	"trader/internal/market"
	"trader/internal/obs"
	"trader/internal/ops"
	"trader/internal/perf"
	"trader/internal/reconcile"
	"trader/internal/recorder"
	"trader/internal/report"
	"trader/internal/risk"
	"trader/internal/strategy"

	"github.com/spf13/cobra"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const equityQueueSize = 64

func newLiveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Trade on the exchange until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateLive(); err != nil {
				return err
			}
			defer startProfiler(cfg.Profiling)()

			ctx, cancel := signalContext()
			defer cancel()
			return runLive(ctx, flags.config, cfg)
		},
	}
}

// liveSession is one running loop with the resources it owns.
type liveSession struct {
	loop *live.Loop
	stop func()
}

func runLive(ctx context.Context, path string, cfg ops.Config) error {
	metrics := obs.NewMetrics()
	ids := obs.NewCycleIDs("c-", 0)
	curve := bus.NewLatest[ledger.Point](0)
	equity := bus.NewQueue[ledger.Point](equityQueueSize)

	handlers := []func(ledger.Point){curve.Add}
	if cfg.Journal.Enabled() {
		db, err := journal.Open(cfg.Journal, nil)
		if err != nil {
			return err
		}
		defer journal.Close(db)

		store, err := journal.NewStore(db, "live-"+time.Now().UTC().Format("20060102T150405"))
		if err != nil {
			return err
		}
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		handlers = append(handlers, store.Sink(ctx))
	}
	go equity.Run(ctx, bus.Fanout(handlers...))

	var current atomic.Pointer[live.Loop]
	if cfg.Board.Addr != "" {
		server := report.NewServer(cfg.Board.Addr, report.Board{
			Curve: curve,
			Record: func() (int, int) {
				if l := current.Load(); l != nil {
					return l.Record()
				}
				return 0, 0
			},
			Health: func() error {
				if l := current.Load(); l != nil {
					return l.Health()
				}
				return nil
			},
			Metrics:  metrics,
			Analyzer: perf.NewAnalyzer(cfg.Backtest.RiskFree),
		})
		go func() {
			if err := server.Run(ctx); err != nil {
				logs.Errorf("status board: %+v", err)
			}
		}()
	}

	reloads := make(chan ops.Config, 1)
	if path != "" {
		if err := ops.Watch(ctx, path, cfg, ops.DefaultDebounce, func(next ops.Config) {
			select {
			case reloads <- next:
			default:
			}
		}); err != nil {
			return err
		}
	}

	for {
		runCtx, stopRun := context.WithCancel(ctx)
		session, err := startSession(runCtx, cfg, metrics, ids, equity)
		if err != nil {
			stopRun()
			return err
		}
		current.Store(session.loop)

		done := make(chan error, 1)
		go func() { done <- session.loop.Run(runCtx) }()

	wait:
		for {
			select {
			case err := <-done:
				stopRun()
				session.stop()
				return err
			case next := <-reloads:
				if err := next.ValidateLive(); err != nil {
					logs.Errorf("ignore config change: %+v", err)
					continue
				}
				logs.Info("configuration changed, restarting the trading loop")
				stopRun()
				err := <-done
				session.stop()
				if err != nil {
					return err
				}
				cfg = next
				break wait
			}
		}
	}
}

// startSession wires the exchange, the strategy and the quote stream for one
// configuration.
func startSession(ctx context.Context, cfg ops.Config, metrics *obs.Metrics, ids *obs.CycleIDs, equity *bus.EquityFeed) (*liveSession, error) {
	client, err := bitmex.NewClient(cfg.BitMEX())
	if err != nil {
		return nil, err
	}
	var gw gateway.Gateway = client
	if cfg.Exchange.DryRun {
		logs.Infof("dry run with %.4f BTC, orders stay local", cfg.Exchange.DryBTC)
		if gw, err = gateway.NewDryRun(client, cfg.Exchange.DryBTC); err != nil {
			return nil, err
		}
	}
	gw = gateway.NewInstrumented(gw, metrics)

	state := market.NewState(cfg.Instrument(), cfg.Strategy.Filter)
	engine, err := strategy.NewEngine(cfg.Strategy, state, ledger.New(cfg.Ledger))
	if err != nil {
		return nil, err
	}

	quotes := live.NewQuoteCache()
	stopFeed, err := startQuoteFeed(ctx, cfg, quotes)
	if err != nil {
		return nil, err
	}

	loop, err := live.New(live.Config{
		Interval:         cfg.Loop.Interval,
		APIRestInterval:  cfg.Loop.APIRestInterval,
		APIErrorInterval: cfg.Loop.APIErrorInterval,
		AmendRetryDelay:  cfg.Loop.AmendRetryDelay,
		SnapshotPath:     cfg.Loop.SnapshotPath,
	}, live.Deps{
		Gateway:    gw,
		Engine:     engine,
		Risk:       risk.NewEngine(cfg.Risk),
		Reconciler: reconcile.New(cfg.Reconcile.RelistInterval, cfg.Reconcile.QtyTolerance),
		Quotes:     quotes,
		Equity:     equity,
		Metrics:    metrics,
		IDs:        ids,
	})
	if err != nil {
		stopFeed()
		return nil, err
	}
	if err := loop.Restore(); err != nil {
		stopFeed()
		return nil, err
	}

	logs.Infof("trading %s with %s strategy on %s", cfg.Exchange.Symbol, cfg.Strategy.Kind, cfg.BaseURL())
	return &liveSession{loop: loop, stop: stopFeed}, nil
}

// startQuoteFeed streams quotes into the cache and, when enabled, into the
// record files. A stream that cannot connect leaves the loop polling the
// instrument.
func startQuoteFeed(ctx context.Context, cfg ops.Config, quotes *live.QuoteCache) (func(), error) {
	var writer *recorder.Writer
	if cfg.Recorder.Enabled {
		rc := recorder.DefaultConfig(cfg.Recorder.Dir)
		rc.FilePrefix = cfg.Recorder.FilePrefix
		w, err := recorder.NewWriter(rc)
		if err != nil {
			return nil, err
		}
		if err := w.Start(ctx); err != nil {
			return nil, err
		}
		writer = w
	}
	closeWriter := func() {
		if writer == nil {
			return
		}
		if err := writer.Close(); err != nil {
			logs.Errorf("close recorder: %+v", err)
		}
	}

	feed := bitmex.NewQuoteFeed(ctx, cfg.RealtimeURL(), cfg.Exchange.Symbol)
	if err := feed.Start(ctx); err != nil {
		logs.Errorf("quote stream unavailable, polling only: %+v", err)
		return closeWriter, nil
	}
	if err := feed.Subscribe(ctx); err != nil {
		feed.Close()
		logs.Errorf("quote stream unavailable, polling only: %+v", errors.Wrap(err, "subscribe"))
		return closeWriter, nil
	}

	unsubscribe := feed.ObserveTicks(ctx, quotes.PrevClose, func(t market.Tick) {
		quotes.Set(t)
		if writer == nil {
			return
		}
		if err := writer.TryAppend(t); err != nil {
			logs.Errorf("record tick: %+v", err)
		}
	})
	return func() {
		unsubscribe()
		feed.Close()
		closeWriter()
	}, nil
}
