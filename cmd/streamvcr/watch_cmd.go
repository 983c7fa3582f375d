package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/streamvcr/internal/config"
	"github.com/ManuGH/streamvcr/internal/dvr"
	"github.com/ManuGH/streamvcr/internal/health"
	xglog "github.com/ManuGH/streamvcr/internal/log"
	"github.com/ManuGH/streamvcr/internal/telemetry"
	"github.com/ManuGH/streamvcr/internal/version"
)

const shutdownTimeout = 10 * time.Second

func newWatchCmd(flags *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	var reportPath, metricsListen string
	cmd := &cobra.Command{
		Use:   "watch CONFIGURATION",
		Short: "Record every window of a schedule file",
		Long: `Load a YAML schedule, skip records whose start is already past and record
the others concurrently. Returns once every recording has finished.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0], flags, stderr)
			if err != nil {
				return err
			}
			if metricsListen != "" {
				cfg.MetricsListen = metricsListen
			}
			return runWatch(cmd.Context(), cfg, reportPath, stdout)
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "write a JSON run report to this path")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve /healthz, /readyz, /metrics and /api/v1/jobs on this address")
	return cmd
}

func runWatch(ctx context.Context, cfg config.AppConfig, reportPath string, stdout io.Writer) error {
	logger := xglog.WithComponent("watch")

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "streamvcr",
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return usageError(fmt.Errorf("init tracing: %w", err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Str("event", "telemetry.shutdown_failed").Msg("failed to flush traces")
		}
	}()

	sched, err := dvr.BuildSchedule(cfg)
	if err != nil {
		return usageError(err)
	}

	if err := os.MkdirAll(sched.OutputDir, 0o750); err != nil {
		return failure(fmt.Errorf("create output directory: %w", err))
	}

	scheduler := dvr.NewScheduler(newRecorder(cfg))
	board := scheduler.Board()

	if cfg.MetricsListen != "" {
		mgr := health.NewManager(version.Version)
		mgr.RegisterChecker(health.NewDirectoryChecker("output_directory", cfg.OutputDirectory))
		mgr.RegisterChecker(health.NewJobsChecker(board))

		srvCfg := health.ServerConfig{Addr: cfg.MetricsListen}
		srv, err := health.Start(srvCfg, health.NewRouter(mgr, board, srvCfg))
		if err != nil {
			return usageError(err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Str("event", "ops.shutdown_failed").Msg("ops server did not stop cleanly")
			}
		}()
	}

	report := scheduler.Watch(ctx, sched)

	if reportPath != "" {
		if err := dvr.WriteReport(reportPath, report); err != nil {
			return failure(err)
		}
		logger.Info().Str("event", "report.written").Str("path", reportPath).Msg("run report written")
	}

	_, _ = fmt.Fprintf(stdout, "%d completed, %d failed, %d skipped, %d rejected\n",
		report.Completed, report.Failed, report.Skipped, report.Rejected)
	if !report.OK() {
		return failure(report.Err())
	}
	return nil
}
