package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/readypush/newsletter-push/internal/config"
	"github.com/readypush/newsletter-push/internal/handler"
	"github.com/readypush/newsletter-push/internal/infra/postgresql"
	"github.com/readypush/newsletter-push/internal/infra/postgresql/migrations"
	infraredis "github.com/readypush/newsletter-push/internal/infra/redis"
	"github.com/readypush/newsletter-push/internal/observability"
	"github.com/readypush/newsletter-push/internal/provider"
	"github.com/readypush/newsletter-push/internal/queue"
	"github.com/readypush/newsletter-push/internal/ratelimit"
	"github.com/readypush/newsletter-push/internal/repository"
	"github.com/readypush/newsletter-push/internal/service"
	"github.com/readypush/newsletter-push/internal/transport"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	// Redis is optional. Without it the provider budget is enforced
	// per-process and catalog reads skip the cache.
	var (
		rdb          *goredis.Client
		rateLimiter  ratelimit.RateLimiter
		catalogCache service.CatalogCache
	)
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		rateLimiter, err = infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
		if err != nil {
			logger.Fatal("rate limiter initialization failed", zap.Error(err))
		}
		catalogCache, err = infraredis.NewCatalogCache(rdb)
		if err != nil {
			logger.Fatal("catalog cache initialization failed", zap.Error(err))
		}
	} else {
		logger.Warn("REDIS_URL not set, using in-process rate limiter")
		rateLimiter = ratelimit.NewSlidingWindow(cfg.RateLimitPerSec)
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()

	acClient, err := provider.NewActiveCampaign(cfg.ActiveCampaignURL, cfg.ActiveCampaignToken, rateLimiter)
	if err != nil {
		logger.Fatal("activecampaign client initialization failed", zap.Error(err))
	}

	pushRepo := repository.NewGormPushRepo(db)
	attemptRepo := repository.NewGormAttemptRepo(db)

	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)

	defaults := service.SenderDefaults{
		Name:    cfg.SenderName,
		Email:   cfg.SenderEmail,
		ReplyTo: cfg.ReplyTo,
	}
	pushService, err := service.NewPushService(pushRepo, attemptRepo, publisher, defaults, logger)
	if err != nil {
		logger.Fatal("push service initialization failed", zap.Error(err))
	}

	catalogTTL := time.Duration(cfg.CatalogCacheTTLSec) * time.Second
	catalogService, err := service.NewCatalogService(acClient, catalogCache, catalogTTL, logger)
	if err != nil {
		logger.Fatal("catalog service initialization failed", zap.Error(err))
	}

	runner, err := service.NewPushRunner(acClient, pushRepo, attemptRepo, logger)
	if err != nil {
		logger.Fatal("runner initialization failed", zap.Error(err))
	}
	worker, err := service.NewWorkerService(pushRepo, consumer, runner, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal("worker initialization failed", zap.Error(err))
	}
	scheduler, err := service.NewScheduler(pushRepo, publisher, 0, 0, logger)
	if err != nil {
		logger.Fatal("scheduler initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	worker.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	if err := handler.RegisterPushRoutes(app, pushService); err != nil {
		logger.Fatal("push route registration failed", zap.Error(err))
	}
	if err := handler.RegisterCatalogRoutes(app, catalogService); err != nil {
		logger.Fatal("catalog route registration failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("newsletter-push api started", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		return worker.Start(groupCtx)
	})

	g.Go(func() error {
		return scheduler.Start(groupCtx)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
	}
	logger.Info("newsletter-push stopped")
}
