package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/bootstrap"
	"github.com/spec-kit/utility-crm/internal/config"
	"github.com/spec-kit/utility-crm/internal/seed"
	"github.com/spec-kit/utility-crm/internal/service"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo users and tickets",
		RunE: withRuntime(func(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) error {
			if cfg.IsProduction() {
				return fmt.Errorf("seed refuses to run with APP_ENV=production")
			}
			stores, err := bootstrap.OpenStores(cmd.Context(), cfg.Postgres, logger)
			if err != nil {
				return fmt.Errorf("open stores: %w", err)
			}
			defer stores.Close()
			if !stores.Postgres.Enabled() {
				logger.Warn("seeding the in-memory store; data is discarded on exit")
			}

			tickets := service.NewTicketService(service.TicketDependencies{
				TicketRepo:   stores.Tickets,
				CommentRepo:  stores.Comments,
				ActivityRepo: stores.Activities,
				UserRepo:     stores.Users,
				Logger:       logger,
			})
			res, err := seed.Run(cmd.Context(), stores.Users, tickets, logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, demo := range seed.DemoUsers {
				fmt.Fprintf(out, "%-9s %s (id %d)\n", demo.Role, demo.Phone, res.Users[demo.Role].ID)
			}
			for _, ticket := range res.Tickets {
				fmt.Fprintf(out, "ticket %s %s\n", ticket.TicketNumber, ticket.Status)
			}
			return nil
		}),
	}
}
