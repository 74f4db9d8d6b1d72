package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/tzuhan-lo/namecard-bot/internal/config"
	"github.com/tzuhan-lo/namecard-bot/internal/handler"
	"github.com/tzuhan-lo/namecard-bot/internal/infra/postgresql"
	"github.com/tzuhan-lo/namecard-bot/internal/infra/postgresql/migrations"
	infraredis "github.com/tzuhan-lo/namecard-bot/internal/infra/redis"
	"github.com/tzuhan-lo/namecard-bot/internal/observability"
	"github.com/tzuhan-lo/namecard-bot/internal/provider"
	"github.com/tzuhan-lo/namecard-bot/internal/queue"
	"github.com/tzuhan-lo/namecard-bot/internal/repository"
	"github.com/tzuhan-lo/namecard-bot/internal/service"
	"github.com/tzuhan-lo/namecard-bot/internal/session"
	"github.com/tzuhan-lo/namecard-bot/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// Redis is optional: without it, sessions live only in the process
	// cache and do not survive restarts.
	var (
		rdb     *redis.Client
		backend session.Backend
	)
	if cfg.RedisURL != "" {
		rdb, err = infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		backend, err = infraredis.NewSessionBackend(rdb)
		if err != nil {
			logger.Fatal("session backend init failed", zap.Error(err))
		}
	} else {
		logger.Warn("REDIS_URL not set, running with in-memory sessions only")
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer rabbit.Close()

	extractor, err := provider.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiAPIKeyFallback, cfg.GeminiModel, logger)
	if err != nil {
		logger.Fatal("gemini extractor init failed", zap.Error(err))
	}
	defer extractor.Close()

	cardStore, err := provider.NewNotionStore(cfg.NotionAPIKey, cfg.NotionDatabaseID)
	if err != nil {
		logger.Fatal("notion store init failed", zap.Error(err))
	}

	messenger, err := provider.NewLineMessenger(cfg.LineChannelAccessToken)
	if err != nil {
		logger.Fatal("line messenger init failed", zap.Error(err))
	}

	sessions, err := session.NewStore(backend, cfg.SessionTTL(), logger)
	if err != nil {
		logger.Fatal("session store init failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	usageRepo := repository.NewGormUsageRecordRepo(db)
	publisher := queue.NewRabbitMQPublisher(rabbit)
	consumer := queue.NewRabbitMQConsumer(rabbit, cfg.WorkerConcurrency, logger)

	batchService, err := service.NewBatchService(sessions, metrics, logger)
	if err != nil {
		logger.Fatal("batch service init failed", zap.Error(err))
	}

	cardService, err := service.NewCardService(
		sessions, batchService, extractor, cardStore, publisher, usageRepo, metrics, logger,
		service.CardServiceOptions{
			DailyLimit:    cfg.DailyCardLimit,
			MaxImageBytes: int64(cfg.MaxImageBytes),
		},
	)
	if err != nil {
		logger.Fatal("card service init failed", zap.Error(err))
	}

	cleanup, err := service.NewCleanupScanner(sessions, cfg.CleanupInterval(), cfg.SessionTTL(), metrics, logger)
	if err != nil {
		logger.Fatal("cleanup scanner init failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	webhookHandler, err := handler.NewWebhookHandler(cfg.LineChannelSecret, cardService, messenger, metrics, logger)
	if err != nil {
		logger.Fatal("webhook handler init failed", zap.Error(err))
	}
	if err := handler.RegisterWebhookRoutes(app, webhookHandler); err != nil {
		logger.Fatal("webhook route registration failed", zap.Error(err))
	}
	if err := handler.RegisterUsageRoutes(app, usageRepo); err != nil {
		logger.Fatal("usage route registration failed", zap.Error(err))
	}
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("api listening", zap.Int("port", cfg.APIPort))
		return app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	})

	g.Go(func() error {
		<-groupCtx.Done()
		return app.Shutdown()
	})

	g.Go(func() error {
		return cleanup.Start(groupCtx)
	})

	if cfg.ImageArchiveURL != "" {
		archive, err := provider.NewImageArchiveClient(cfg.ImageArchiveURL)
		if err != nil {
			logger.Fatal("archive client init failed", zap.Error(err))
		}
		worker, err := service.NewArchiveWorker(consumer, messenger, archive, cfg.WorkerConcurrency, metrics, logger)
		if err != nil {
			logger.Fatal("archive worker init failed", zap.Error(err))
		}
		g.Go(func() error {
			return worker.Start(groupCtx)
		})
	} else {
		logger.Warn("IMAGE_ARCHIVE_URL not set, archive jobs will stay queued")
	}

	if err := g.Wait(); err != nil && groupCtx.Err() == nil {
		logger.Fatal("service stopped with error", zap.Error(err))
	}
	logger.Info("namecard-bot stopped")
}
