package main

import (
	"fmt"

	"receipt-keeper/internal/migrations"
	"receipt-keeper/pkg/config"
	"receipt-keeper/pkg/logger"
	"receipt-keeper/pkg/postgres"

	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logger.Init(cfg.Logger.Level, cfg.Logger.Development); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer logger.Sync()

			db, err := postgres.OpenSQL(cmd.Context(), &cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			return migrations.Apply(cmd.Context(), db, logger.Get())
		},
	}
}
