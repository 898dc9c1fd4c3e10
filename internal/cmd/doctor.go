package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/ailink/prompt"
	"github.com/courtcopilot/courtcopilot/internal/config"
	"github.com/courtcopilot/courtcopilot/internal/core/store"
	errwrap "github.com/courtcopilot/courtcopilot/internal/errors"
	"github.com/courtcopilot/courtcopilot/internal/observability"
)

const apiKeyEnv = config.EnvPrefix + "API_KEY"

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the system and suggest fixes for common issues.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		logger := observability.CLILogger
		logger.Info("=== " + config.AppName + " doctor ===")
		logger.Info("")
		logger.Info("Running diagnostic checks...")
		logger.Info("")

		allChecks := true
		totalChecks := 7

		// Check 1: Go version
		goVersion := runtime.Version()
		if goVersion >= "go1.23" {
			logger.Info(fmt.Sprintf("[1/%d] Checking Go version... ✅ %s", totalChecks, goVersion), zap.String("go_version", goVersion))
		} else {
			logger.Warn(fmt.Sprintf("[1/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", totalChecks, goVersion), zap.String("go_version", goVersion))
			allChecks = false
		}

		// Check 2: Gofulmen and Crucible
		version := crucible.GetVersion()
		if version.Crucible != "" && version.Gofulmen != "" {
			logger.Info(fmt.Sprintf("[2/%d] Checking Gofulmen/Crucible... ✅ v%s / v%s", totalChecks, version.Gofulmen, version.Crucible),
				zap.String("gofulmen_version", version.Gofulmen),
				zap.String("crucible_version", version.Crucible))
		} else {
			logger.Error(fmt.Sprintf("[2/%d] Checking Gofulmen/Crucible... ❌ version metadata unavailable", totalChecks))
			allChecks = false
		}

		// Check 3: Config directory
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			logger.Error(fmt.Sprintf("[3/%d] Checking config directory... ❌ Cannot resolve config directory", totalChecks))
			ExitWithCode(logger, foundry.ExitFileNotFound, "Cannot resolve config directory", errwrap.NewConfigInvalidError("config directory not resolved"))
			return
		}
		logger.Info(fmt.Sprintf("[3/%d] Checking config directory... ✅ %s (%s)", totalChecks, filepath.Dir(configPath), existenceStatus(fileExists(configPath))),
			zap.String("config_path", configPath))

		// Check 4: Config
		cfg, cfgErr := loadConfig(ctx)
		if cfgErr != nil {
			logger.Warn(fmt.Sprintf("[4/%d] Checking config... ⚠️  not loaded", totalChecks), zap.Error(cfgErr))
			allChecks = false
		} else {
			logger.Info(fmt.Sprintf("[4/%d] Checking config... ✅ cache.ttl=%s history.max_items=%d", totalChecks, cfg.Cache.TTL, cfg.History.MaxItems))
		}

		// Check 5: Store
		if cfgErr == nil {
			backend, storeErr := store.OpenBackend(ctx, cfg.Store)
			if storeErr != nil {
				logger.Warn(fmt.Sprintf("[5/%d] Checking store... ⚠️  cannot open (%s)", totalChecks, describeStore(cfg)), zap.Error(storeErr))
				allChecks = false
			} else {
				keys, keysErr := backend.Keys(ctx)
				_ = backend.Close()
				if keysErr != nil {
					logger.Warn(fmt.Sprintf("[5/%d] Checking store... ⚠️  unreadable", totalChecks), zap.Error(keysErr))
					allChecks = false
				} else {
					logger.Info(fmt.Sprintf("[5/%d] Checking store... ✅ %s, %d keys", totalChecks, describeStore(cfg), len(keys)),
						zap.String("driver", backend.Driver()))
				}
			}
		} else {
			logger.Warn(fmt.Sprintf("[5/%d] Checking store... ⚠️  skipped (config not loaded)", totalChecks))
		}

		// Check 6: Prompts
		promptsDir := ""
		if cfgErr == nil {
			promptsDir = cfg.AILink.PromptsDir
		}
		if registry, err := prompt.LoadRegistry(promptsDir); err != nil {
			logger.Error(fmt.Sprintf("[6/%d] Checking prompts... ❌ %v", totalChecks, err))
			allChecks = false
		} else {
			logger.Info(fmt.Sprintf("[6/%d] Checking prompts... ✅ %d loaded (%d pro, %d flash)", totalChecks,
				len(registry.List()), len(registry.ByTier(prompt.TierPro)), len(registry.ByTier(prompt.TierFlash))))
		}

		// Check 7: AI backend
		switch {
		case cfgErr != nil:
			logger.Warn(fmt.Sprintf("[7/%d] Checking AI backend... ⚠️  skipped (config not loaded)", totalChecks))
		case isAIBackendConfigured(cfg.AILink):
			logger.Info(fmt.Sprintf("[7/%d] Checking AI backend... ✅ configured", totalChecks))
		default:
			logger.Warn(fmt.Sprintf("[7/%d] Checking AI backend... ⚠️  no API key (set %s or run '%s doctor init')", totalChecks, apiKeyEnv, config.AppName))
			logger.Info("       Searches, document analysis and judge dossiers require a model API key.")
			allChecks = false
		}

		logger.Info("")
		if allChecks {
			logger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", config.AppName))
		} else {
			logger.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		logger.Info("")
		logger.Info("=== End Diagnostics ===")
	},
}

var (
	doctorInitForce   bool
	doctorInitAPIKey  string
	doctorResetConfig bool
	doctorResetData   bool
	doctorResetAll    bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		apiKey := strings.TrimSpace(doctorInitAPIKey)
		if strings.EqualFold(apiKey, "prompt") {
			key, err := promptForValue(cmd.InOrStdin(), cmd.OutOrStdout(), "Enter Gemini API key (leave blank to skip): ")
			if err != nil {
				return err
			}
			apiKey = key
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		mode := os.FileMode(0644)
		if apiKey != "" {
			mode = 0600
		}

		if err := os.WriteFile(configPath, []byte(buildInitConfig(apiKey)), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.CLILogger
		configPath := config.DefaultConfigPath()

		logger.Info("Configuration:")
		logger.Info(fmt.Sprintf("  Config file:   %s (%s)", configPath, existenceStatus(fileExists(configPath))))

		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			logger.Warn("Config load failed", zap.Error(err))
			return nil
		}

		logger.Info(fmt.Sprintf("  Store:         %s", describeStore(cfg)))
		if path := localStorePath(cfg); path != "" {
			if info, statErr := os.Stat(path); statErr == nil {
				logger.Info(fmt.Sprintf("  Database size: %s", formatFileSize(info.Size())))
			}
		}

		logger.Info("")
		logger.Info("Environment:")
		logger.Info("  " + apiKeyEnv + ": " + envStatus(apiKeyEnv))

		logger.Info("")
		logger.Info("Effective Settings:")
		logger.Info(fmt.Sprintf("  ailink.default_provider:     %s", cfg.AILink.DefaultProvider))
		logger.Info(fmt.Sprintf("  cache.ttl:                   %s", cfg.Cache.TTL))
		logger.Info(fmt.Sprintf("  history.max_items:           %d", cfg.History.MaxItems))
		logger.Info(fmt.Sprintf("  pipeline.max_query_length:   %d", cfg.Pipeline.MaxQueryLength))
		logger.Info(fmt.Sprintf("  pipeline.coalesce_inflight:  %t", cfg.Pipeline.CoalesceInflight))
		logger.Info(fmt.Sprintf("  metrics.enabled:             %t", cfg.Metrics.Enabled))
		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		logger := observability.CLILogger
		if doctorResetConfig {
			configPath := config.DefaultConfigPath()
			if configPath == "" {
				logger.Warn("Config path not resolved; skipping config reset")
			} else if err := os.Remove(configPath); err == nil {
				logger.Info("Config removed", zap.String("path", configPath))
			} else if os.IsNotExist(err) {
				logger.Info("Config already removed", zap.String("path", configPath))
			} else {
				return fmt.Errorf("remove config file: %w", err)
			}
		}

		if doctorResetData {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			absPath := localStorePath(cfg)
			if absPath == "" {
				return fmt.Errorf("store is not a local file (%s); database reset is not supported", describeStore(cfg))
			}
			if err := os.Remove(absPath); err == nil {
				logger.Info("Database removed", zap.String("path", absPath))
			} else if os.IsNotExist(err) {
				logger.Info("Database already removed", zap.String("path", absPath))
			} else {
				return fmt.Errorf("remove database: %w", err)
			}
		}

		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file not found: %s: %w", configPath, err)
		}

		if _, err := loadConfig(cmd.Context()); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitAPIKey, "api-key", "", "set the Gemini API key or use 'prompt' to enter")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local database")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

func describeStore(cfg *config.Config) string {
	driver := strings.TrimSpace(cfg.Store.Driver)
	switch {
	case strings.EqualFold(driver, "memory"):
		return "memory"
	case cfg.Store.URL != "":
		return cfg.Store.URL + " (remote)"
	default:
		return localStorePath(cfg)
	}
}

// localStorePath returns the absolute database path, or "" when the store
// is remote or in memory.
func localStorePath(cfg *config.Config) string {
	if strings.EqualFold(strings.TrimSpace(cfg.Store.Driver), "memory") || cfg.Store.URL != "" {
		return ""
	}
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = config.DefaultStorePath()
	}
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return dbPath
	}
	return absPath
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

func buildInitConfig(apiKey string) string {
	lines := []string{
		"# " + config.AppName + " config - created by '" + config.AppName + " doctor init'",
		"cache:",
		"  ttl: 1h",
		"history:",
		"  max_items: 10",
		"ailink:",
		"  default_provider: gemini",
		"  providers:",
		"    gemini:",
		"      enabled: true",
		"      ai_provider: gemini",
		"      models:",
		"        pro: gemini-3-pro-preview",
		"        flash: gemini-3-flash-preview",
		"      credentials:",
		"        - label: default",
		"          enabled: true",
		"          priority: 0",
	}

	if strings.TrimSpace(apiKey) != "" {
		lines = append(lines, fmt.Sprintf("          api_key: %q", apiKey))
	} else {
		lines = append(lines, "          # api_key: \"\"  # Set via "+apiKeyEnv+" or uncomment")
	}

	return strings.Join(lines, "\n") + "\n"
}

func promptForValue(in io.Reader, out io.Writer, label string) (string, error) {
	if _, err := fmt.Fprint(out, label); err != nil {
		return "", err
	}
	value, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
