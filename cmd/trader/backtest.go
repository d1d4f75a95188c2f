package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"trader/internal/backtest"
	"trader/internal/journal"
	"trader/internal/market"
	"trader/internal/ops"
	"trader/internal/perf"
	"trader/internal/recorder"
	"trader/internal/report"
	"trader/internal/strategy"

	"github.com/spf13/cobra"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

func newBacktestCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay recorded quotes through the configured strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if kind, _ := cmd.Flags().GetString("strategy"); kind != "" {
				cfg.Strategy.Kind = strategy.Kind(kind)
				if err := cfg.Strategy.Validate(); err != nil {
					return err
				}
			}
			defer startProfiler(cfg.Profiling)()

			ctx, cancel := signalContext()
			defer cancel()
			return runBacktest(ctx, cfg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("strategy", "", "Override strategy.kind: grid, donchian, moving_average or pivot")
	return cmd
}

func loadTicks(ctx context.Context, cfg ops.Config) ([]market.Tick, error) {
	playback, err := recorder.NewPlayback(recorder.PlaybackConfig{
		Path:       cfg.Backtest.Data,
		FilePrefix: cfg.Backtest.FilePrefix,
	})
	if err != nil {
		return nil, err
	}
	ticks, err := playback.Load(ctx)
	if err != nil {
		return nil, err
	}
	logs.Infof("loaded %d ticks from %s", len(ticks), cfg.Backtest.Data)
	return ticks, nil
}

func runBacktest(ctx context.Context, cfg ops.Config, out io.Writer) error {
	ticks, err := loadTicks(ctx, cfg)
	if err != nil {
		return err
	}
	runner, err := backtest.NewRunner(cfg.BacktestRun(cfg.Instrument()))
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := runner.Run(ctx, ticks)
	if err != nil {
		return err
	}
	logs.Infof("backtest finished in %v: %d ticks accepted, %d rejected, %d fills", time.Since(start), res.Accepted, res.Rejected, len(res.Fills))
	if res.Bankrupt {
		logs.Errorf("bankrupt at %s", res.BankruptAt.UTC().Format(time.RFC3339))
	}

	if err := writeReport(cfg.Backtest.Report, out, res); err != nil {
		return err
	}
	fmt.Fprintln(out, report.RenderSummary("backtest "+string(cfg.Strategy.Kind), res.Summary))

	if cfg.Journal.Enabled() {
		if err := journalRun(ctx, cfg.Journal, "backtest-"+string(cfg.Strategy.Kind)+"-"+start.UTC().Format("20060102T150405"), res); err != nil {
			return err
		}
	}
	return nil
}

// writeReport writes the daily report to path, or to out when path is empty.
func writeReport(path string, out io.Writer, res backtest.Result) error {
	if path == "" {
		return perf.WriteReport(out, res.Curve)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create report %s", path)
	}
	if err := perf.WriteReport(f, res.Curve); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write report %s", path)
	}
	logs.Infof("report written to %s", path)
	return f.Close()
}

func journalRun(ctx context.Context, opt journal.Option, runID string, res backtest.Result) error {
	db, err := journal.Open(opt, nil)
	if err != nil {
		return err
	}
	defer journal.Close(db)

	store, err := journal.NewStore(db, runID)
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	if err := store.SaveEquity(ctx, res.Curve...); err != nil {
		return err
	}
	if err := store.SaveFills(ctx, res.Fills...); err != nil {
		return err
	}
	logs.Infof("journaled run %s", runID)
	return nil
}

func newOptimizeCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search the pivot breakout factors over recorded quotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			top, _ := cmd.Flags().GetInt("top")
			defer startProfiler(cfg.Profiling)()

			ctx, cancel := signalContext()
			defer cancel()
			return runOptimize(ctx, cfg, top, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int("top", 10, "Number of best parameter sets to print")
	return cmd
}

func runOptimize(ctx context.Context, cfg ops.Config, top int, out io.Writer) error {
	if cfg.Strategy.Kind != strategy.KindPivot {
		logs.Infof("optimize searches pivot factors, switching from %s", cfg.Strategy.Kind)
		cfg.Strategy.Kind = strategy.KindPivot
	}
	ticks, err := loadTicks(ctx, cfg)
	if err != nil {
		return err
	}

	trials, err := backtest.Optimize(ctx, cfg.BacktestRun(cfg.Instrument()), backtest.DefaultGrid(), ticks, cfg.Backtest.Workers)
	if err != nil {
		return err
	}
	if top <= 0 || top > len(trials) {
		top = len(trials)
	}
	for _, t := range trials[:top] {
		fmt.Fprintf(out, "f1 %.2f f2 %.2f f3 %.2f benefit %.2f%% sharpe %.4f drawdown %.2f%% bankrupt %t\n",
			t.Pivot.F1, t.Pivot.F2, t.Pivot.F3, t.FinalBenefitPct, t.Sharpe, t.MaxDrawdownPct, t.Bankrupt)
	}
	return nil
}
