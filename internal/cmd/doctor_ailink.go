package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/courtcopilot/courtcopilot/internal/ailink"
	"github.com/courtcopilot/courtcopilot/internal/ailink/prompt"
	"github.com/courtcopilot/courtcopilot/internal/config"
	"github.com/courtcopilot/courtcopilot/internal/observability"
)

const defaultDoctorPrompt = "legal-search"

var (
	doctorAILinkModel string
	doctorAILinkList  bool
)

var doctorAILinkCmd = &cobra.Command{
	Use:   "ailink [prompt-slug]",
	Short: "Inspect AILink provider resolution",
	Long:  "Resolve a prompt to a provider instance, model tier and credential. Defaults to the " + defaultDoctorPrompt + " prompt.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		promptRegistry, err := prompt.LoadRegistry(cfg.AILink.PromptsDir)
		if err != nil {
			return fmt.Errorf("load prompt registry: %w", err)
		}

		logger := observability.CLILogger
		if doctorAILinkList {
			logger.Info("Prompts")
			for _, p := range promptRegistry.List() {
				logger.Info(fmt.Sprintf("  %-22s tier=%-6s json=%t", p.Config.Slug, p.Config.Tier, p.WantsJSON()))
			}
			return nil
		}

		promptSlug := defaultDoctorPrompt
		if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
			promptSlug = strings.TrimSpace(args[0])
		}

		promptDef, err := promptRegistry.Get(promptSlug)
		if err != nil {
			return fmt.Errorf("prompt not found: %w", err)
		}

		resolved, err := ailink.NewRegistry(cfg.AILink).Resolve(promptDef, doctorAILinkModel)
		if err != nil {
			return fmt.Errorf("resolve provider: %w", err)
		}

		providerCfg := resolved.Provider
		resolutionSource, routingTarget := describeAILinkResolution(cfg, promptSlug)

		logger.Info("AILink Resolution")
		logger.Info(fmt.Sprintf("  Prompt:       %s", promptSlug))
		logger.Info(fmt.Sprintf("  Tier:         %s", promptDef.Config.Tier))
		logger.Info(fmt.Sprintf("  Source:       %s", resolutionSource))
		if routingTarget != "" {
			logger.Info(fmt.Sprintf("  Routing:      %s -> %s", promptSlug, routingTarget))
		}
		logger.Info(fmt.Sprintf("  Provider ID:  %s", resolved.ProviderID))
		logger.Info(fmt.Sprintf("  ai_provider:  %s", providerCfg.AIProvider))
		logger.Info(fmt.Sprintf("  base_url:     %s", resolved.BaseURL))

		modelSource := "prompt_preferred_models"
		switch tier := strings.ToLower(strings.TrimSpace(promptDef.Config.Tier)); {
		case strings.TrimSpace(doctorAILinkModel) != "":
			modelSource = "cli_override"
		case tier != "" && strings.TrimSpace(providerCfg.Models[tier]) != "":
			modelSource = "provider.models." + tier
		}
		logger.Info(fmt.Sprintf("  model:        %s", resolved.Model))
		logger.Info(fmt.Sprintf("  model_source: %s", modelSource))
		logger.Info("")

		policy := strings.TrimSpace(providerCfg.SelectionPolicy)
		if policy == "" {
			policy = "priority"
		}
		logger.Info("Credential Selection")
		logger.Info(fmt.Sprintf("  selection_policy:   %s", policy))
		if strings.TrimSpace(providerCfg.DefaultCredential) != "" {
			logger.Info(fmt.Sprintf("  default_credential: %s", providerCfg.DefaultCredential))
		}
		logger.Info(fmt.Sprintf("  selected.label:     %s", resolved.Credential.Label))
		logger.Info(fmt.Sprintf("  selected.priority:  %d", resolved.Credential.Priority))
		if strings.TrimSpace(resolved.Credential.APIKey) != "" {
			logger.Info("  selected.api_key:   (set)")
		} else {
			logger.Info("  selected.api_key:   (not set)")
			logger.Warn("Selected credential has no API key", zap.String("provider", resolved.ProviderID))
		}

		return nil
	},
}

// describeAILinkResolution names the rule that picks the provider for slug.
func describeAILinkResolution(cfg *config.Config, slug string) (source string, routingTarget string) {
	if cfg == nil {
		return "config missing", ""
	}

	slug = strings.TrimSpace(slug)
	if slug != "" && cfg.AILink.Routing != nil {
		routingTarget = strings.TrimSpace(cfg.AILink.Routing[slug])
		if routingTarget != "" {
			return "routing", routingTarget
		}
	}

	if strings.TrimSpace(cfg.AILink.DefaultProvider) != "" {
		return "default_provider", ""
	}

	enabledCount := 0
	for _, providerCfg := range cfg.AILink.Providers {
		if providerCfg.Enabled {
			enabledCount++
		}
	}
	if enabledCount == 1 {
		return "only_enabled_provider", ""
	}

	return "unknown", ""
}

// isAIBackendConfigured reports whether some enabled provider carries an
// API key.
func isAIBackendConfigured(cfg ailink.Config) bool {
	for _, providerCfg := range cfg.Providers {
		if !providerCfg.Enabled {
			continue
		}
		for _, cred := range providerCfg.Credentials {
			if strings.TrimSpace(cred.APIKey) != "" {
				return true
			}
		}
	}
	return false
}

func init() {
	doctorCmd.AddCommand(doctorAILinkCmd)

	doctorAILinkCmd.Flags().StringVar(&doctorAILinkModel, "model", "", "Model override (defaults to the provider's model for the prompt tier)")
	doctorAILinkCmd.Flags().BoolVar(&doctorAILinkList, "list", false, "List the loaded prompts instead of resolving one")
}
