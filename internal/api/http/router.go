package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/spec-kit/utility-crm/internal/api/http/handlers"
	"github.com/spec-kit/utility-crm/internal/auth"
	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/observability"
	apperrors "github.com/spec-kit/utility-crm/pkg/util/errorutil"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	History        *handlers.HistoryHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware

	Metrics     *observability.Metrics
	MetricsPath string

	// LoginLimit caps login and verify calls per client IP within LoginWindow.
	// Zero disables the limiter.
	LoginLimit  int
	LoginWindow time.Duration
	// LimiterStorage shares limiter counters across instances. Nil keeps them in memory.
	LimiterStorage fiber.Storage
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.Metrics != nil && cfg.MetricsPath != "" {
		app.Get(cfg.MetricsPath, adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	loginGuard := loginLimiter(cfg)
	authGroup.Post("/login", loginGuard, cfg.Auth.Login)
	authGroup.Post("/verify", loginGuard, cfg.Auth.Verify)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Auth.Me)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", auth.RequireRole(domain.RoleManager, domain.RoleAdmin), cfg.Tickets.DeleteTicket)
	tickets.Put("/:id/status", cfg.Tickets.UpdateStatus)
	tickets.Get("/:id/transitions", cfg.Tickets.Transitions)
	tickets.Put("/:id/assign", auth.RequireStaff(), cfg.Tickets.Assign)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Get("/:id/history", cfg.Tickets.History)

	api.Get("/history", cfg.AuthMiddleware.Handle, auth.RequireStaff(), cfg.History.Feed)

	users := api.Group("/users", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	users.Get("/", cfg.Users.List)
	users.Post("/", cfg.Users.Create)
	users.Put("/:id/role", cfg.Users.UpdateRole)
	users.Put("/:id/active", cfg.Users.UpdateActive)
}

func loginLimiter(cfg RouteConfig) fiber.Handler {
	if cfg.LoginLimit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        cfg.LoginLimit,
		Expiration: cfg.LoginWindow,
		Storage:    cfg.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			return apperrors.NewTooManyRequests("too many login attempts, try again later")
		},
	})
}
