package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/config"
	"github.com/spec-kit/utility-crm/internal/observability"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ticketctl",
		Short:        "Operational commands for the utility CRM",
		SilenceUsage: true,
	}
	root.AddCommand(newMigrateCmd(), newSeedCmd())
	return root
}

// withRuntime loads configuration and a logger before running fn.
func withRuntime(fn func(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := observability.NewLogger(cfg.Logger, cfg.IsProduction())
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		return fn(cmd, cfg, logger)
	}
}
