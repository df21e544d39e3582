package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	application, cleanup, err := bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := application.DB.Migrate(); err != nil {
		return err
	}
	application.Logger.Info().Str("database", application.Config.DatabaseFile).Msg("Schema is up to date")
	return nil
}
