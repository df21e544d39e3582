package main

import (
	"fmt"
	"os"

	"github.com/amaumene/watchqueue/internal/app"
	"github.com/amaumene/watchqueue/internal/config"
	"github.com/amaumene/watchqueue/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	rootCmd = &cobra.Command{
		Use:   "watchqueue",
		Short: "Event-sourced watch queue with custom ordering and timeline stats",
		Long: `watchqueue keeps a per-owner queue of videos and podcasts.
Every state change is recorded as an event; list dates, timeline groups
and dashboard statistics are derived from that event log.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("db", "", "database file (default $CONFIG_DIR/watchqueue.db)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json or console)")
	rootCmd.PersistentFlags().String("timezone", "UTC", "zone used for calendar days")

	// Bind flags to viper
	viper.BindPFlag("DATABASE_FILE", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("LOG_LEVEL", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("LOG_FORMAT", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("TIMEZONE", rootCmd.PersistentFlags().Lookup("timezone"))
}

// bootstrap loads configuration and wires the application
func bootstrap() (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	application, cleanup, err := app.Initialize(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, cleanup, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
