package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"iapBack/internal/repositories"
)

func newMigrateCmd(env *runtimeEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the subscriptions table and its indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := env.cfg, env.logger
			if err := cfg.Validate(); err != nil {
				return err
			}
			dialect, err := repositories.ParseDialect(cfg.Database.Driver)
			if err != nil {
				return err
			}

			db, err := openDB(cfg.Database.Driver, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			repo := repositories.NewSubscriptionRepository(db, dialect, cfg.IAP.Table, cfg.IAP.UsersTable)
			if err := repo.Migrate(ctx); err != nil {
				logger.Error().Err(err).Str("table", cfg.IAP.Table).Msg("migration failed")
				return err
			}
			logger.Info().Str("table", cfg.IAP.Table).Str("driver", cfg.Database.Driver).Msg("schema is up to date")
			return nil
		},
	}
}
