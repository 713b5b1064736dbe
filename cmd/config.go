package cmd

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/oddgeir/bedrockusage/pkg/config"
)

var configInitForce bool

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the analyzer configuration",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(rootConfigPath); err == nil && !configInitForce {
				return fmt.Errorf("%s already exists (use --force to overwrite)", rootConfigPath)
			}
			if err := config.Save(rootConfigPath, config.NewDefault()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Add your models under [[models]].\n", rootConfigPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(initCmd)

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			b, err := toml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	})

	rootCmd.AddCommand(configCmd)
}
