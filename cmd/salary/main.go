// Command salary runs the salary insights services.
//
// Subcommands:
//
//	serve      web form and JSON API
//	predictor  RPC prediction service backed by the reference table
//	insights   print the market insights report
//	usage      Kafka usage aggregator with PostgreSQL snapshots
//
// Usage:
//
//	go run ./cmd/salary serve [--config configs/development.yaml]
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/logger"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "salary",
	Short:         "Malaysia salary insights",
	Long:          "Salary prediction form, prediction service and market insights over a reference salary dataset.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.Name())
		slog.Debug("config loaded", "path", configPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/development.yaml", "path to config file")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
