package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/munchmtxi/notification-engine/internal/config"
	"github.com/munchmtxi/notification-engine/internal/events"
	"github.com/munchmtxi/notification-engine/internal/infra/postgresql"
	"github.com/munchmtxi/notification-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/munchmtxi/notification-engine/internal/infra/redis"
	"github.com/munchmtxi/notification-engine/internal/observability"
	"github.com/munchmtxi/notification-engine/internal/provider"
	"github.com/munchmtxi/notification-engine/internal/repository"
	"github.com/munchmtxi/notification-engine/internal/service"
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

	logRepo := repository.NewGormNotificationLogRepo(db)
	metrics := observability.NewMetrics()

	engine, err := service.NewRetryEngine(
		logRepo, registry, limiter, sink, metrics,
		cfg.SweepInterval(), cfg.SweepLimit, cfg.SweepConcurrency, cfg.SendTimeout(), logger,
	)
	if err != nil {
		logger.Fatal("retry engine initialization failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("notification-engine worker started",
		zap.Duration("sweepInterval", cfg.SweepInterval()),
		zap.Int("sweepLimit", cfg.SweepLimit),
		zap.Int("sweepConcurrency", cfg.SweepConcurrency),
	)

	if err := engine.Start(ctx); err != nil {
		logger.Fatal("retry engine stopped with error", zap.Error(err))
	}

	logger.Info("notification-engine worker stopped")
}
