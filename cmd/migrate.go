package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/peerhaven/backend/internal/config"
	"github.com/peerhaven/backend/internal/db"
	"github.com/peerhaven/backend/internal/models"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		if err := autoMigrate(database); err != nil {
			return err
		}
		slog.Info("migrations applied")
		return nil
	},
}

func autoMigrate(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.Ticket{},
		&models.Message{},
		&models.Memo{},
	)
}
