package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/gsg-it/it4u/internal/api/http"
	"github.com/gsg-it/it4u/internal/api/http/handlers"
	"github.com/gsg-it/it4u/internal/auth"
	"github.com/gsg-it/it4u/internal/config"
	"github.com/gsg-it/it4u/internal/observability"
	"github.com/gsg-it/it4u/internal/persistence"
	"github.com/gsg-it/it4u/internal/repository"
	"github.com/gsg-it/it4u/internal/service"
	"github.com/gsg-it/it4u/internal/worker"
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

	blobs, err := persistence.NewDiskBlobStore(cfg.Storage.Dir)
	if err != nil {
		logger.Fatal("failed to init attachment storage", zap.Error(err))
	}

	store := repository.NewStore(pg.PoolHandle())
	bus := worker.StartNotificationPipeline(store, cfg, logger)
	defer bus.Close()

	cache := service.NewTicketCache(redis.Client, logger)
	tickets := service.NewTicketService(service.TicketDependencies{
		Store:  store,
		Bus:    bus,
		Cache:  cache,
		Logger: logger,
	})
	attachments := service.NewAttachmentService(store, blobs, cache, logger, nil)
	audits := service.NewAuditService(store.Audits)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(store.Users, tokens, cfg.Auth.BcryptCost, logger)
	authMiddleware := auth.NewMiddleware(tokens, store.Users)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Attachments:    handlers.NewAttachmentsHandler(attachments),
		Audit:          handlers.NewAuditHandler(audits),
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
