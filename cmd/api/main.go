package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/helpdesk/ticketd/internal/api/http"
	"github.com/helpdesk/ticketd/internal/api/http/handlers"
	"github.com/helpdesk/ticketd/internal/auth"
	"github.com/helpdesk/ticketd/internal/config"
	"github.com/helpdesk/ticketd/internal/domain"
	"github.com/helpdesk/ticketd/internal/events"
	"github.com/helpdesk/ticketd/internal/observability"
	"github.com/helpdesk/ticketd/internal/persistence"
	"github.com/helpdesk/ticketd/internal/repository"
	"github.com/helpdesk/ticketd/internal/service"
	"github.com/helpdesk/ticketd/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	departmentRepo := repository.NewDepartmentRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	priorityRepo := repository.NewPriorityRepository(pool)
	statusRepo := repository.NewStatusRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	historyRepo := repository.NewChangeHistoryRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:       pg,
		TicketRepo:  ticketRepo,
		CommentRepo: commentRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
	})
	lookupService := service.NewLookupService(service.LookupDependencies{
		CategoryRepo: categoryRepo,
		PriorityRepo: priorityRepo,
		StatusRepo:   statusRepo,
		Cache:        redis,
		CacheTTL:     cfg.Redis.LookupTTL(),
		Logger:       logger,
	})
	userService := service.NewUserService(service.UserDependencies{
		UserRepo:       userRepo,
		DepartmentRepo: departmentRepo,
		TokenManager:   tokenManager,
		BcryptCost:     cfg.Auth.BcryptCost,
	})
	departmentService := service.NewDepartmentService(departmentRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	worker.StartNotificationWorker(notificationService)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(userService),
		Departments:    handlers.NewDepartmentsHandler(departmentService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Categories:     handlers.NewLookupsHandler(lookupService, domain.LookupCategory),
		Priorities:     handlers.NewLookupsHandler(lookupService, domain.LookupPriority),
		Statuses:       handlers.NewLookupsHandler(lookupService, domain.LookupStatus),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
