package main

import (
	"context"

	"trader/internal/gateway/bitmex"
	"trader/internal/market"
	"trader/internal/ops"
	"trader/internal/recorder"

	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
)

func newFetchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download historical quote bins into record files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runFetch(ctx, cfg)
		},
	}
}

func runFetch(ctx context.Context, cfg ops.Config) error {
	start, end, err := cfg.FetchRange()
	if err != nil {
		return err
	}
	client, err := bitmex.NewClient(cfg.BitMEX())
	if err != nil {
		return err
	}

	rc := recorder.DefaultConfig(cfg.Fetch.Out)
	rc.FilePrefix = cfg.Backtest.FilePrefix
	writer, err := recorder.NewWriter(rc)
	if err != nil {
		return err
	}
	if err := writer.Start(ctx); err != nil {
		return err
	}

	history := bitmex.History{Client: client, BinSize: cfg.Fetch.BinSize, Pause: cfg.Fetch.Pause}
	fetchErr := history.Fetch(ctx, start, end, func(t market.Tick) error {
		return writer.Append(ctx, t)
	})
	closeErr := writer.Close()
	if fetchErr != nil {
		return fetchErr
	}
	if closeErr != nil {
		return closeErr
	}
	logs.Infof("wrote %d ticks into %s", writer.Written(), cfg.Fetch.Out)
	return nil
}
