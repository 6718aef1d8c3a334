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

	httptransport "github.com/spec-kit/itconnect/internal/api/http"
	"github.com/spec-kit/itconnect/internal/api/http/handlers"
	"github.com/spec-kit/itconnect/internal/auth"
	"github.com/spec-kit/itconnect/internal/config"
	"github.com/spec-kit/itconnect/internal/events"
	"github.com/spec-kit/itconnect/internal/observability"
	"github.com/spec-kit/itconnect/internal/persistence"
	"github.com/spec-kit/itconnect/internal/repository"
	"github.com/spec-kit/itconnect/internal/service"
	"github.com/spec-kit/itconnect/internal/worker"
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

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	accessRepo := repository.NewAccessControlRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	credentialRepo := repository.NewCredentialRepository(pool)
	complaintRepo := repository.NewComplaintRepository(pool)
	historyRepo := repository.NewComplaintHistoryRepository(pool)
	roleUpgradeRepo := repository.NewRoleUpgradeRepository(pool)

	mirror := persistence.NewMirror(redis.Client, cfg.Mirror.TTL(), metrics)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	sessions := auth.NewRedisSessions(redis.Client, tokens.TTL(), logger)
	dispatcher := events.NewInMemoryDispatcher(logger)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		CredentialRepo:    credentialRepo,
		AccessControlRepo: accessRepo,
		Sessions:          sessions,
		Tokens:            tokens,
		Logger:            logger,
		Metrics:           metrics,
	})
	complaintService := service.NewComplaintService(service.ComplaintDependencies{
		ComplaintRepo:     complaintRepo,
		HistoryRepo:       historyRepo,
		AccessControlRepo: accessRepo,
		Dispatcher:        dispatcher,
		Logger:            logger,
		Metrics:           metrics,
	})
	profileService := service.NewProfileService(service.ProfileDependencies{
		AccessControlRepo: accessRepo,
		ProfileRepo:       profileRepo,
		CredentialRepo:    credentialRepo,
		Mirror:            mirror,
		Dispatcher:        dispatcher,
		BcryptCost:        cfg.Auth.BcryptCost,
		Logger:            logger,
		Metrics:           metrics,
	})
	roleUpgradeService := service.NewRoleUpgradeService(service.RoleUpgradeDependencies{
		RoleUpgradeRepo:   roleUpgradeRepo,
		AccessControlRepo: accessRepo,
		Dispatcher:        dispatcher,
		Logger:            logger,
		Metrics:           metrics,
	})

	worker.StartNotificationWorker(dispatcher, cfg.Notification, logger)
	worker.StartMirrorInvalidation(dispatcher, mirror, logger)

	authMiddleware := auth.NewMiddleware(tokens, sessions, accessRepo, logger, metrics)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService),
		Session:        handlers.NewSessionHandler(authMiddleware, logger),
		Complaints:     handlers.NewComplaintsHandler(complaintService),
		Profiles:       handlers.NewProfilesHandler(profileService),
		RoleUpgrades:   handlers.NewRoleUpgradesHandler(roleUpgradeService),
		AuthMiddleware: authMiddleware,
		AuthConfig:     cfg.Auth,
		Metrics:        metrics,
		Gatherer:       prometheus.DefaultGatherer,
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
