package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "8080", "HTTP listen port")
	viper.BindPFlag("SERVER_PORT", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	application, cleanup, err := bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	logger := application.Logger
	logger.Info().Str("version", Version).Msg("Starting watchqueue")
	logger.Info().
		Str("config_dir", filepath.Dir(application.Config.DatabaseFile)).
		Str("timezone", application.Config.Location.String()).
		Msg("Configuration loaded")

	// Start server in goroutine
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := application.Server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info().Msg("watchqueue is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		if err := application.Server.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("Error during server shutdown")
		}
	}

	logger.Info().Msg("watchqueue stopped")
	return nil
}
