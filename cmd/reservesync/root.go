// ReserveSync - Facility Reservation Workbook Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reservesync

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/reservesync/internal/api"
	"github.com/tomtom215/reservesync/internal/config"
	"github.com/tomtom215/reservesync/internal/logging"
	"github.com/tomtom215/reservesync/internal/pipeline"
	"github.com/tomtom215/reservesync/internal/report"
	"github.com/tomtom215/reservesync/internal/supervisor"
	"github.com/tomtom215/reservesync/internal/supervisor/services"
)

// rootOptions holds global flags.
type rootOptions struct {
	ConfigPath string
	LogLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "reservesync",
		Short:         "Synchronize facility reservation workbooks to a remote store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd.Context(), opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config.yaml (overrides "+config.ConfigPathEnvVar+")")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override logging.level")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the supervised synchronization service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runService(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "once",
			Short: "Run exactly one synchronization cycle and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runOnce(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Run the health checks and print the report as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runCheck(cmd.Context(), opts, cmd.OutOrStdout())
			},
		},
	)
	return cmd
}

// loadConfig loads configuration and initializes logging.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, opts.ConfigPath); err != nil {
			return nil, withExit(exitFailure, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, withExit(exitFailure, fmt.Errorf("load configuration: %w", err))
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})
	logging.Info().
		Str("base_path", cfg.Workbook.BasePath).
		Str("store", cfg.Store.Kind).
		Int("facilities", len(cfg.Facilities.Map)).
		Bool("notify", cfg.Notify.Enabled()).
		Msg("Configuration loaded")
	return cfg, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runService(parent context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{snapshots: true})
	if err != nil {
		return withExit(exitFailure, err)
	}
	defer a.close()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return withExit(exitFailure, err)
	}

	critical := services.NewCriticalService(a.orch, a.orch.String(), pipeline.ErrFailureCeiling)
	tree.AddPipelineService(critical)
	tree.AddPipelineService(a.detector.Fingerprints())
	tree.AddPipelineService(report.NewPurger(cfg.Report.Dir, cfg.Report.RetentionDays, cfg.Report.PurgeInterval))
	if cfg.Workbook.Watch {
		tree.AddPipelineService(pipeline.NewWatcher(cfg.Workbook.BasePath, cfg.Workbook.Pattern, cfg.Workbook.WatchDebounce, a.orch))
	}
	if cfg.Server.Enabled {
		server := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.NewRouter(a.orch, api.RouterConfig{}).Handler(),
			ReadHeaderTimeout: cfg.Server.Timeout,
			ReadTimeout:       cfg.Server.Timeout,
			WriteTimeout:      cfg.Server.Timeout,
		}
		tree.AddAPIService(services.NewHealthServer(server, cfg.Server.Timeout))
		logging.Info().Str("addr", cfg.Server.Addr).Msg("Health server enabled")
	}

	logging.Info().Msg("Starting ReserveSync with supervisor tree")
	serveErr := tree.Serve(ctx)

	if unstopped, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(unstopped) > 0 {
		logging.Warn().Int("services", len(unstopped)).Msg("Some services did not stop within the shutdown timeout")
	}
	return serviceExit(serveErr, critical.Cause())
}

// serviceExit maps the supervisor outcome to an exit error.
func serviceExit(serveErr, cause error) error {
	switch {
	case cause != nil && errors.Is(cause, pipeline.ErrFailureCeiling):
		return withExit(exitCeiling, cause)
	case cause != nil:
		return withExit(exitFailure, cause)
	case serveErr == nil, errors.Is(serveErr, context.Canceled):
		logging.Info().Msg("ReserveSync stopped")
		return nil
	default:
		return withExit(exitFailure, serveErr)
	}
}

func runOnce(parent context.Context, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{snapshots: true})
	if err != nil {
		return withExit(exitFailure, err)
	}
	defer a.close()

	res, err := a.orch.RunOnce(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		logging.Info().Msg("Single cycle interrupted by shutdown")
		return nil
	}
	if err != nil {
		return withExit(exitFailure, fmt.Errorf("cycle %s: %w", res.ID, err))
	}
	logging.Info().
		Str("cycle_id", res.ID).
		Bool("changed", res.Changed).
		Int("records", res.Extracted).
		Int("changes", len(res.Changes)).
		Str("report", res.ReportPath).
		Dur("duration", res.Duration).
		Msg("Single cycle complete")
	return nil
}

func runCheck(parent context.Context, opts *rootOptions, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(parent)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return withExit(exitFailure, err)
	}
	defer a.release()

	health := a.health.CheckAll(ctx)
	data, err := json.MarshalIndent(health, "", "  ")
	if err != nil {
		return withExit(exitFailure, err)
	}
	if _, err := fmt.Fprintln(out, string(data)); err != nil {
		return withExit(exitFailure, err)
	}
	if !health.Healthy {
		return withExit(exitFailure, fmt.Errorf("unhealthy components: %v", health.Failed()))
	}
	return nil
}
