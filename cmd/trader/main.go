package main

import (
	"context"
	"log"

	"trader/internal/ops"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("trader: %+v", err)
	}
}

type rootFlags struct {
	config    string
	pyroscope string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "trader",
		Short:         "Inverse perpetual trading bot and backtester",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.config, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&flags.pyroscope, "pyroscope", "", "Pyroscope server address, overrides profiling.server_address")

	root.AddCommand(
		newLiveCmd(flags),
		newBacktestCmd(flags),
		newOptimizeCmd(flags),
		newFetchCmd(flags),
	)
	return root
}

// load reads and validates the configuration shared by every command.
func (f *rootFlags) load() (ops.Config, error) {
	cfg, err := ops.Load(f.config)
	if err != nil {
		return ops.Config{}, err
	}
	if f.pyroscope != "" {
		cfg.Profiling.ServerAddress = f.pyroscope
	}
	if err := cfg.Validate(); err != nil {
		return ops.Config{}, err
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-sys.Shutdown():
			logs.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// startProfiler starts continuous profiling when a server is configured.
func startProfiler(cfg ops.ProfilingConfig) func() {
	if cfg.ServerAddress == "" {
		return func() {}
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.AppName,
		ServerAddress:   cfg.ServerAddress,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		logs.Errorf("pyroscope start failed: %+v", err)
		return func() {}
	}
	return func() {
		if err := profiler.Stop(); err != nil {
			logs.Errorf("pyroscope stop: %+v", err)
		}
	}
}
