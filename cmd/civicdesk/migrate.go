package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/civicdesk/civicdesk/internal/logging"
	"github.com/civicdesk/civicdesk/pkg/config"
	"github.com/civicdesk/civicdesk/pkg/db"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New(cfg.LogLevel, cfg.ServiceName)
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			gdb, err := db.Open(ctx, cfg.DatabaseURL, db.Pool{MaxOpenConns: 2, MaxIdleConns: 1})
			if err != nil {
				return err
			}
			defer closeDB(gdb, log)

			if err := db.Migrate(ctx, gdb); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
