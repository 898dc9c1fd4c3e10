package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/config"
	"github.com/courtcopilot/courtcopilot/internal/observability"
)

var (
	cfgFile   string
	verbose   bool
	traceFile string

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Legal research assistant backed by a grounded language model",
	Long: `courtcopilot researches legal questions with a grounded language model,
enriches the answer with a docket timeline, case telemetry and an
adversarial strategy, and audits uploaded case documents.

Results are cached, recent searches are remembered, and any result can be
bookmarked.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep config loading from emitting metrics to stdout. serve installs
	// a real system later.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/"+config.AppName+"/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	rootCmd.PersistentFlags().StringVar(&traceFile, "trace", "", "trace model requests/responses to an NDJSON file")
}

func initConfig() {
	observability.InitCLILogger(verbose)
	config.SetConfigFile(cfgFile)
	if cfgFile != "" {
		observability.CLILogger.Debug("Using config file", zap.String("path", cfgFile))
	}
}

// loadConfig loads configuration with the CLI's runtime overrides applied.
func loadConfig(ctx context.Context) (*config.Config, error) {
	overrides := map[string]any{}
	if path := strings.TrimSpace(traceFile); path != "" {
		overrides["ailink"] = map[string]any{"debug": map[string]any{"trace_file": path}}
	}
	cfg, err := config.Load(ctx, overrides)
	if err != nil {
		return nil, &configError{err: fmt.Errorf("load config: %w", err)}
	}
	return cfg, nil
}
