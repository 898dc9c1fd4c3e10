package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/courtcopilot/courtcopilot/internal/errors"
	"github.com/courtcopilot/courtcopilot/internal/observability"
	"github.com/courtcopilot/courtcopilot/internal/server/handlers"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Run a self-health check to verify the application can start successfully: configuration loads and the store answers.",
	Run: func(cmd *cobra.Command, args []string) {
		if observability.CLILogger == nil {
			ExitWithCodeStderr(foundry.ExitConfigInvalid, "Logger not initialized", errwrap.NewConfigInvalidError("Logger not initialized"))
			return
		}
		logger := observability.CLILogger
		logger.Info("Running health check...")

		if versionInfo.Version == "" {
			logger.Error("❌ FAIL: Version information missing")
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		logger.Debug("Version check passed", zap.String("version", versionInfo.Version))
		logger.Info("✅ Version information available")

		sess, err := openSession(cmd.Context())
		if err != nil {
			logger.Error("❌ FAIL: Session could not be opened")
			ExitWithCode(logger, ExitCodeFor(err), "Session could not be opened", err)
			return
		}
		defer sess.Close()
		logger.Info("✅ Configuration loaded")

		if err := handlers.StoreChecker(sess.kv).CheckHealth(cmd.Context()); err != nil {
			logger.Error("❌ FAIL: Store check failed", zap.Error(err))
			sess.Close()
			ExitWithCode(logger, foundry.ExitFailure, "Store check failed", err)
			return
		}
		logger.Info("✅ Store reachable", zap.String("driver", sess.kv.Driver()))

		logger.Info("")
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
