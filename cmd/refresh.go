package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/oddgeir/bedrockusage/pkg/analyzer"
	"github.com/oddgeir/bedrockusage/pkg/awsauth"
	"github.com/oddgeir/bedrockusage/pkg/bedrock"
	"github.com/oddgeir/bedrockusage/pkg/catalog"
	"github.com/oddgeir/bedrockusage/pkg/config"
	"github.com/oddgeir/bedrockusage/pkg/quotamap"
	"github.com/oddgeir/bedrockusage/pkg/servicequotas"
)

func init() {
	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh cached metadata",
	}

	refreshCmd.AddCommand(&cobra.Command{
		Use:   "profiles",
		Short: "Re-list inference profiles and rewrite the profile cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, creds, err := refreshSetup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			profiles, err := analyzer.DiscoverProfiles(ctx, cfg, bedrock.NewClient(creds, cfg.Region), time.Now())
			if err != nil {
				return err
			}
			if path := analyzer.ProfileCachePath(cfg); path != "" {
				log.Info("profiles refreshed", "region", cfg.Region, "count", len(profiles), "cache", path)
			} else {
				log.Warn("no cache_dir configured, discovery result was not persisted", "count", len(profiles))
			}
			return nil
		},
	})

	refreshCmd.AddCommand(&cobra.Command{
		Use:   "quotas",
		Short: "Refresh the model-to-quota-code catalog with LLM matching",
		Long: "Lists the account's Bedrock quotas and asks an OpenAI-compatible model to match " +
			"them to the analyzed model ids, then writes the refreshed catalog for the region.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, creds, err := refreshSetup()
			if err != nil {
				return err
			}
			apiKey := os.Getenv("OPENAI_API_KEY")
			if apiKey == "" {
				return fmt.Errorf("OPENAI_API_KEY must be set for the quota mapping refresh")
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			targets := map[string][]string{}
			for _, m := range cfg.Models {
				targets[m.ModelID] = appendPrefix(targets[m.ModelID], m.ProfilePrefix)
			}
			profiles, err := analyzer.DiscoverProfiles(ctx, cfg, bedrock.NewClient(creds, cfg.Region), time.Now())
			if err != nil {
				log.Warn("profile discovery failed, refreshing configured models only", "err", err)
			}
			for _, p := range profiles {
				targets[p.ModelID] = appendPrefix(targets[p.ModelID], p.Prefix)
			}
			if len(targets) == 0 {
				return fmt.Errorf("nothing to refresh: no models configured and no inference profiles found")
			}

			mapper := quotamap.NewMapper(
				apiKey, cfg.QuotaMapper.BaseURL, cfg.QuotaMapper.Model,
				servicequotas.NewClient(creds, cfg.Region),
				catalog.New(catalogDir(cfg)),
				cfg.Region,
			)
			if err := mapper.Refresh(ctx, targets); err != nil {
				return err
			}
			log.Info("catalog refreshed", "region", cfg.Region, "models", len(targets), "dir", catalogDir(cfg))
			return nil
		},
	})

	rootCmd.AddCommand(refreshCmd)
}

func refreshSetup() (config.Config, awsauth.Credentials, error) {
	cfg, err := loadConfig()
	if err != nil {
		return config.Config{}, awsauth.Credentials{}, err
	}
	creds, err := awsauth.FromEnv()
	if err != nil {
		return config.Config{}, awsauth.Credentials{}, fmt.Errorf("aws credentials: %w", err)
	}
	return cfg, creds, nil
}

func appendPrefix(prefixes []string, prefix string) []string {
	if slices.Contains(prefixes, prefix) {
		return prefixes
	}
	return append(prefixes, prefix)
}
