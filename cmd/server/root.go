package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"qbwc-webhook-adapter/internal/config"
	"qbwc-webhook-adapter/internal/logging"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "qbwc-adapter",
	Short: "QuickBooks Web Connector to webhook adapter",
	Long: `qbwc-adapter serves the QuickBooks Web Connector SOAP endpoint,
archives every qbXML answer and forwards normalized records as webhooks.

Run without a subcommand to start the server. The queue, deadletters and
archive subcommands inspect local state.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (environment variables override it)")
	rootCmd.PersistentFlags().String("output", "json", "output format: json, yaml")
}

func initConfig() error {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := godotenv.Load(); err != nil {
		bootstrap.Warn("No .env file found, continuing with environment variables")
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		bootstrap.Error("Failed to load configuration", "error", err)
		return fmt.Errorf("load config: %w", err)
	}
	logger = logging.New(os.Stdout, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	return nil
}
