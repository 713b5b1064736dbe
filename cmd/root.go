package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oddgeir/bedrockusage/pkg/config"
	"github.com/oddgeir/bedrockusage/pkg/logutil"
)

var (
	rootConfigPath string
	rootLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "bua",
	Short: "AWS Bedrock usage analyzer",
	Long:  "Analyzes per-model AWS Bedrock usage from CloudWatch metrics and reports it against the account's service quotas.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", config.DefaultFileName, "Config TOML path")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "loglevel", "", "Log level (debug, info, warn, error); overrides config")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Optional .env for AWS and OpenAI credentials.
		_ = godotenv.Load()
		return nil
	}
}

// loadConfig reads the config file, falling back to defaults when none
// exists, and configures logging.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(rootConfigPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return config.Config{}, err
		}
		cfg = config.NewDefault()
	}
	if rootLogLevel != "" {
		cfg.LogLevel = rootLogLevel
	}
	if err := logutil.Configure(cfg.LogLevel); err != nil {
		return config.Config{}, fmt.Errorf("configure logging: %w", err)
	}
	return cfg, nil
}

// catalogDir is where refreshed FM lists are written and read back,
// overriding the embedded snapshots.
func catalogDir(cfg config.Config) string {
	if cfg.CacheDir == "" {
		return "catalog"
	}
	return filepath.Join(cfg.CacheDir, "catalog")
}
