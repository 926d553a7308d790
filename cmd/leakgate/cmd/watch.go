package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/leakgate/internal/alert"
	"github.com/hugo-lorenzo-mato/leakgate/internal/core"
	"github.com/hugo-lorenzo-mato/leakgate/internal/detect"
	"github.com/hugo-lorenzo-mato/leakgate/internal/events"
	"github.com/hugo-lorenzo-mato/leakgate/internal/policy"
	"github.com/hugo-lorenzo-mato/leakgate/internal/report"
	"github.com/hugo-lorenzo-mato/leakgate/internal/watchdog"
	"github.com/hugo-lorenzo-mato/leakgate/internal/web"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the watchdog loop until interrupted",
	Long: `Run detectors on a fixed interval, publishing violations to the
configured alert sinks. With server.enabled, exposes the status HTTP API.
Policy hot-reload picks up edits to the policy file without restart.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	led, err := openLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer led.Close()

	// Policy source: a hot-reloading watcher when enabled, otherwise a
	// one-time load.
	var policies func() core.PolicyLookup
	if cfg.Policy.Reload {
		reloader, err := policy.NewReloader(cfg.Policy.Path, logger)
		if err != nil {
			return err
		}
		go func() {
			if werr := reloader.Watch(ctx); werr != nil && !errors.Is(werr, context.Canceled) {
				logger.Error("policy watcher stopped", "error", werr)
			}
		}()
		policies = func() core.PolicyLookup { return reloader.Store() }
	} else {
		store, err := loadPolicyStore(cfg.Policy.Path, logger)
		if err != nil {
			return err
		}
		policies = func() core.PolicyLookup { return store }
	}

	sinks := []core.AlertSink{alert.NewLogSink(logger)}
	if cfg.Alert.Endpoint != "" {
		httpOpts := []alert.HTTPSinkOption{alert.WithHTTPLogger(logger)}
		if timeout := cfg.Alert.TimeoutDuration(); timeout > 0 {
			httpOpts = append(httpOpts, alert.WithHTTPClient(&http.Client{Timeout: timeout}))
		}
		sinks = append(sinks, alert.NewHTTPSink(cfg.Alert.Endpoint, httpOpts...))
	}

	var writer *report.Writer
	if cfg.Report.Path != "" {
		writer = report.NewWriter(cfg.Report.Path)
	}

	bus := events.New(events.DefaultBufferSize)
	defer bus.Close()

	wd := watchdog.New(watchdog.Config{
		Ledger:   led,
		Policies: policies,
		Runner: detect.NewRunner(detect.Builtin(nil),
			detect.WithLogger(logger),
			detect.WithParallelism(cfg.Watchdog.Parallelism)),
		Interval: cfg.Watchdog.IntervalDuration(),
		Bus:      bus,
		Sinks:    sinks,
		Writer:   writer,
		Logger:   logger,
	})

	if cfg.Server.Enabled {
		srvCfg := web.DefaultConfig()
		srvCfg.Addr = cfg.Server.Addr
		srv := web.New(srvCfg, led, logger, web.WithWatchdog(wd))
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			if serr := srv.Shutdown(context.Background()); serr != nil {
				logger.Error("server shutdown", "error", serr)
			}
		}()
	}

	err = wd.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
