package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/findmyspot/findmyspot/internal/config"
)

var (
	cfg          *config.Config
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "findmyspot",
	Short: "On-street parking search and availability forecasts",
	Long:  "Finds kerbside bays and their rule zones near an address or coordinate, forecasts zone availability through a model, historical and baseline cascade, and suggests nearby alternatives.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat != "json" && outputFormat != "yaml" {
			return fmt.Errorf("unsupported --format %q (json or yaml)", outputFormat)
		}

		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "json", "output format: json or yaml")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
