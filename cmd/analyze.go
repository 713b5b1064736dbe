package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oddgeir/bedrockusage/pkg/analyzer"
	"github.com/oddgeir/bedrockusage/pkg/awsauth"
	"github.com/oddgeir/bedrockusage/pkg/bedrock"
	"github.com/oddgeir/bedrockusage/pkg/catalog"
	"github.com/oddgeir/bedrockusage/pkg/cloudwatch"
	"github.com/oddgeir/bedrockusage/pkg/metrics"
	"github.com/oddgeir/bedrockusage/pkg/quotamap"
	"github.com/oddgeir/bedrockusage/pkg/report"
	"github.com/oddgeir/bedrockusage/pkg/servicequotas"
)

var (
	analyzeRegion  string
	analyzeWorkers int
	analyzeQuiet   bool
)

func init() {
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze Bedrock usage and write per-model reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("region") {
				cfg.Region = analyzeRegion
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = analyzeWorkers
			}

			creds, err := awsauth.FromEnv()
			if err != nil {
				return fmt.Errorf("aws credentials: %w", err)
			}

			cw := cloudwatch.NewClient(creds, cfg.Region)
			br := bedrock.NewClient(creds, cfg.Region)
			sq := servicequotas.NewClient(creds, cfg.Region)

			resolver := quotamap.NewResolver(catalog.New(catalogDir(cfg)), sq, cfg.Region)
			a := analyzer.New(cfg, br, metrics.NewOrchestrator(cw, cfg.Workers), resolver)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			docs, err := a.Run(ctx)
			if err != nil {
				return err
			}
			if !analyzeQuiet {
				for _, doc := range docs {
					report.PrintSummary(cmd.OutOrStdout(), doc)
					fmt.Fprintln(cmd.OutOrStdout())
				}
			}
			return nil
		},
	}
	analyzeCmd.Flags().StringVar(&analyzeRegion, "region", "", "Override AWS region from config")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "Override fetch worker count from config")
	analyzeCmd.Flags().BoolVar(&analyzeQuiet, "quiet", false, "Skip terminal summaries, write report files only")
	rootCmd.AddCommand(analyzeCmd)
}
