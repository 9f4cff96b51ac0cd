package cmd

import (
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/morie/internal/daemon"
	"github.com/Aman-CERP/morie/internal/errors"
	"github.com/Aman-CERP/morie/internal/logging"
	"github.com/Aman-CERP/morie/internal/output"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the cache up to date as refs move",
		Long: `Watch HEAD and the repository's refs and run maintenance after every
burst of changes, so list always finds a fresh cache.

Only one watcher runs per cache directory. Logs go to ~/.morie/logs/
at the configured logging.level. With --metrics-addr (or
watch.metrics_addr) Prometheus metrics are served at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Watch.MetricsAddr = metricsAddr
			}
			debounce, err := cfg.DebounceDuration()
			if err != nil {
				return errors.ConfigError("invalid watch.debounce", err)
			}

			if !opts.debug {
				logCfg := logging.DefaultConfig()
				logCfg.Level = cfg.Logging.Level
				logger, cleanup, err := logging.Setup(logCfg)
				if err != nil {
					return fmt.Errorf("failed to setup logging: %w", err)
				}
				defer cleanup()
				slog.SetDefault(logger)
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			a, err := openApp(cfg, reg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			gitDir := a.content.GitDir()
			if gitDir == "" {
				return errors.ContentStoreError("repository has no git directory to watch", nil)
			}

			dcfg := daemon.DefaultConfig(cfg.DataDir())
			dcfg.MetricsAddr = cfg.Watch.MetricsAddr
			dcfg.Watch.DebounceWindow = debounce
			d, err := daemon.New(dcfg, daemon.Dependencies{Syncer: a.catalog, Gatherer: reg})
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			out.Successf("Watching %s (Ctrl+C to stop)", cfg.Repository.Path)

			err = d.Run(cmd.Context(), gitDir)
			if stderrors.Is(err, daemon.ErrAlreadyRunning) {
				msg := "a watcher is already running for this repository"
				if pid, ok := daemon.Running(dcfg); ok {
					msg = fmt.Sprintf("a watcher is already running for this repository (pid %d)", pid)
				}
				return errors.New(errors.ErrCodeWatchRunning, msg, err).
					WithSuggestion("Stop the other watcher first")
			}
			if err != nil {
				return err
			}

			total, failed := d.Cycles()
			out.Status("", fmt.Sprintf("Stopped after %d maintenance cycles (%d failed)", total, failed))
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")

	return cmd
}
