package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/utility-crm/internal/api/http"
	"github.com/spec-kit/utility-crm/internal/api/http/handlers"
	"github.com/spec-kit/utility-crm/internal/auth"
	"github.com/spec-kit/utility-crm/internal/bootstrap"
	"github.com/spec-kit/utility-crm/internal/config"
	"github.com/spec-kit/utility-crm/internal/events"
	"github.com/spec-kit/utility-crm/internal/observability"
	"github.com/spec-kit/utility-crm/internal/persistence"
	"github.com/spec-kit/utility-crm/internal/service"
	"github.com/spec-kit/utility-crm/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.IsProduction())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := bootstrap.OpenStores(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to open stores", zap.Error(err))
	}
	defer stores.Close()

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var codeStore auth.CodeStore = auth.NewMemoryCodeStore()
	var limiterStorage fiber.Storage
	if redis != nil {
		codeStore = persistence.NewRedisCodeStore(redis)
		limiterStorage = persistence.NewLimiterStorage(redis)
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
		metrics.RegisterRuntime()
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, metrics, cfg.Notification))

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   stores.Tickets,
		CommentRepo:  stores.Comments,
		ActivityRepo: stores.Activities,
		UserRepo:     stores.Users,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   stores.Users,
		CodeStore:  codeStore,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	userService := service.NewUserService(stores.Users, logger)

	if cfg.Auth.BootstrapAdminPhone != "" {
		if _, err := userService.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminPhone, "Administrator"); err != nil {
			logger.Fatal("failed to bootstrap admin", zap.Error(err))
		}
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), stores.Users)

	exposeStack := !cfg.IsProduction()
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics, exposeStack),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:     cfg.App.RequestTimeout(),
		ExposeStack: exposeStack,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, stores.Postgres, redis),
		Auth:           handlers.NewAuthHandler(authService, userService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		History:        handlers.NewHistoryHandler(ticketService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
		MetricsPath:    cfg.Metrics.Path,
		LoginLimit:     cfg.RateLimit.Max,
		LoginWindow:    cfg.RateLimit.Window(),
		LimiterStorage: limiterStorage,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
