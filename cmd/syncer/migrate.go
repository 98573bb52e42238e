package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"mpsync/syncer/internal/database/migrations"
)

var migrateDown int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations, or roll back with --down",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Opening the database applies pending migrations.
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if migrateDown <= 0 {
			log.Info().Msg("Schema is up to date")
			return nil
		}

		files, err := migrations.LoadMigrations(cfg.DBDriver)
		if err != nil {
			return err
		}
		return migrations.RollbackMigrations(db.DB, files, migrateDown)
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateDown, "down", 0, "Number of applied migrations to roll back")
}
