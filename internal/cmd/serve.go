package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/config"
	errwrap "github.com/courtcopilot/courtcopilot/internal/errors"
	"github.com/courtcopilot/courtcopilot/internal/metrics"
	"github.com/courtcopilot/courtcopilot/internal/observability"
	"github.com/courtcopilot/courtcopilot/internal/server"
	"github.com/courtcopilot/courtcopilot/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
func telemetryHealthChecker(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.WrapInternal(ctx, nil, "telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (logging level and profile)

The server will cleanly shut down the HTTP server, close the store and
flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		overrides := map[string]any{}
		listen := map[string]any{}
		if cmd.Flags().Changed("host") {
			listen["host"] = serverHost
		}
		if cmd.Flags().Changed("port") {
			listen["port"] = serverPort
		}
		if len(listen) > 0 {
			overrides["server"] = listen
		}
		if traceFile != "" {
			overrides["ailink"] = map[string]any{"debug": map[string]any{"trace_file": traceFile}}
		}

		cfg, err := config.Load(ctx, overrides)
		if err != nil {
			return &configError{err: errwrap.WrapConfigInvalid(ctx, err, "config load failed")}
		}

		observability.InitServerLogger(cfg.Logging)
		logger := observability.ServerLogger

		if err := observability.InitMetrics(cfg.Metrics); err != nil {
			logger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
		}
		metrics.SetServerStartTime(time.Now().Unix())

		sess, err := openSessionWith(ctx, cfg, logger)
		if err != nil {
			return err
		}

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("store_driver", sess.kv.Driver()),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("metrics_port", observability.MetricsPort()))

		hm := handlers.NewHealthManager(versionInfo.Version)
		hm.RegisterChecker("store", handlers.StoreChecker(sess.kv))
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", handlers.HealthCheckerFunc(telemetryHealthChecker))
		}

		srv := server.New(cfg.Server, sess.svc, hm)

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Shutdown handlers run LIFO: server first, then store, then logger.
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Closing store...")
			sess.Close()
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			reloaded, err := config.Load(ctx, overrides)
			if err != nil {
				observability.ServerLogger.Error("Failed to reload config", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			observability.InitServerLogger(reloaded.Logging)
			observability.ServerLogger.Info("Configuration reloaded",
				zap.String("log_level", reloaded.Logging.Level),
				zap.String("log_profile", reloaded.Logging.Profile))
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		errChan := make(chan error, 2)
		go func() {
			errChan <- srv.Start()
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(ctx, err, "server error")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host (overrides server.host)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port (overrides server.port)")
}
