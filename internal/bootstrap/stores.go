package bootstrap

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/config"
	"github.com/spec-kit/utility-crm/internal/persistence"
	"github.com/spec-kit/utility-crm/internal/repository"
)

// Stores groups the repositories used by the services.
type Stores struct {
	Tickets    repository.TicketRepository
	Comments   repository.CommentRepository
	Activities repository.ActivityRepository
	Users      repository.UserRepository

	Postgres *persistence.Postgres
}

// OpenStores connects postgres when a DSN is configured and falls back to the
// in-memory store otherwise. Migrations run when enabled.
func OpenStores(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Stores, error) {
	pg, err := persistence.NewPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if !pg.Enabled() {
		mem := repository.NewMemoryStore()
		return &Stores{
			Tickets:    mem.Tickets(),
			Comments:   mem.Comments(),
			Activities: mem.Activities(),
			Users:      mem.Users(),
			Postgres:   pg,
		}, nil
	}

	if cfg.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, err
		}
	}

	pool := pg.PoolHandle()
	return &Stores{
		Tickets:    repository.NewTicketRepository(pool),
		Comments:   repository.NewCommentRepository(pool),
		Activities: repository.NewActivityRepository(pool),
		Users:      repository.NewUserRepository(pool),
		Postgres:   pg,
	}, nil
}

// Close releases the database pool, if any.
func (s *Stores) Close() {
	if s != nil {
		s.Postgres.Close()
	}
}
