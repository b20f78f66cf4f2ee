package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/munchmtxi/notification-engine/internal/config"
	"github.com/munchmtxi/notification-engine/internal/events"
	"github.com/munchmtxi/notification-engine/internal/handler"
	"github.com/munchmtxi/notification-engine/internal/infra/postgresql"
	"github.com/munchmtxi/notification-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/munchmtxi/notification-engine/internal/infra/redis"
	"github.com/munchmtxi/notification-engine/internal/observability"
	"github.com/munchmtxi/notification-engine/internal/provider"
	"github.com/munchmtxi/notification-engine/internal/repository"
	"github.com/munchmtxi/notification-engine/internal/service"
	"github.com/munchmtxi/notification-engine/internal/template"
	"github.com/munchmtxi/notification-engine/internal/transport"
	"go.uber.org/zap"
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

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	limiter, err := infraredis.NewRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	rabbitSink, err := events.NewRabbitMQSink(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	sink := events.NewBestEffortSink(rabbitSink, logger)
	defer sink.Close()

	notificationRepo := repository.NewGormNotificationRepo(db)
	logRepo := repository.NewGormNotificationLogRepo(db)
	templateRepo := repository.NewGormTemplateRepo(db)

	templateCache, err := template.NewCache(templateRepo, cfg.TemplateCacheTTL())
	if err != nil {
		logger.Fatal("template cache initialization failed", zap.Error(err))
	}

	whatsapp, err := provider.NewWhatsAppAdapter(cfg.WhatsAppAPIURL, cfg.WhatsAppAPIToken)
	if err != nil {
		logger.Fatal("whatsapp adapter initialization failed", zap.Error(err))
	}
	sms, err := provider.NewSMSAdapter(cfg.SMSAPIURL, cfg.SMSAccountSID, cfg.SMSAuthToken, cfg.SMSSender)
	if err != nil {
		logger.Fatal("sms adapter initialization failed", zap.Error(err))
	}
	email, err := provider.NewEmailAdapter(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	if err != nil {
		logger.Fatal("email adapter initialization failed", zap.Error(err))
	}
	registry, err := provider.NewRegistry(whatsapp, sms, email)
	if err != nil {
		logger.Fatal("adapter registry initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	dispatcher, err := service.NewDispatchService(
		notificationRepo, logRepo, templateCache, registry, limiter, sink, metrics, cfg.SendTimeout(), logger,
	)
	if err != nil {
		logger.Fatal("dispatch service initialization failed", zap.Error(err))
	}

	reader, err := service.NewReader(notificationRepo, logRepo)
	if err != nil {
		logger.Fatal("reader initialization failed", zap.Error(err))
	}

	analytics, err := service.NewAnalyticsService(logRepo, logger)
	if err != nil {
		logger.Fatal("analytics service initialization failed", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	if err := handler.RegisterNotificationRoutes(app, dispatcher, reader, analytics); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logger.Info("shutting down api")
		if err := app.Shutdown(); err != nil {
			logger.Error("fiber shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("notification-engine api started", zap.Int("port", cfg.APIPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("fiber server failed", zap.Error(err))
	}
}
