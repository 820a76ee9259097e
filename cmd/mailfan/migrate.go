package main

import (
	"github.com/spf13/cobra"

	"github.com/mailfan/mailfan/internal/config"
	"github.com/mailfan/mailfan/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply content store schema migrations and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := newLogger(&cfg.Logging)

	database, err := db.New(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	logger.Info("migrations applied", "database", cfg.Storage.DatabasePath)
	return nil
}
