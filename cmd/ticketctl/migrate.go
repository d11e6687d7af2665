package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/config"
	"github.com/spec-kit/utility-crm/internal/persistence"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: withRuntime(func(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) error {
			if cfg.Postgres.DSN == "" {
				return errors.New("POSTGRES_DSN is required for migrate")
			}
			pg, err := persistence.NewPostgres(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pg.Close()

			if err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		}),
	}
}
