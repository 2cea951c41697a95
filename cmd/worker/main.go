package main

import (
	"time"

	mqcontracts "taskhub/contracts/mq"
	"taskhub/internal/config"
	"taskhub/internal/mqhandler"
	"taskhub/internal/repository"
	"taskhub/internal/webhook"
	"taskhub/pkg/db"
	"taskhub/pkg/logger"
	"taskhub/pkg/mq"
	"taskhub/pkg/redis"
	"taskhub/pkg/util"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger := logger.NewLogger()
	defer logger.Sync()

	logger.Info("Starting webhook worker...")

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, time.Hour, logger)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	logger.Info("DB ready")

	// repositories
	subRepo := repository.NewSubscriptionRepository(dbConn, logger)

	// DLQ publisher (通道在 NewPublisher 里已声明 DLQ exchange)
	dlqPublisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init DLQ publisher", zap.Error(err))
	}
	defer dlqPublisher.Close()

	for _, event := range []string{
		mqcontracts.EventTaskCreated,
		mqcontracts.EventTaskUpdated,
		mqcontracts.EventTaskCompleted,
		mqcontracts.EventProjectCreated,
		mqcontracts.EventProjectCompleted,
	} {
		if err := dlqPublisher.SetupDLQQueue(event); err != nil {
			logger.Fatal("DLQ queue setup failed", zap.String("event", event), zap.Error(err))
		}
	}

	// deliverer
	maxAttempts := cfg.Webhook.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	backoff := 1 * time.Second
	if cfg.Webhook.BackoffSeconds > 0 {
		backoff = time.Duration(cfg.Webhook.BackoffSeconds) * time.Second
	}
	timeout := 10 * time.Second
	if cfg.Webhook.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second
	}
	deliverer := webhook.NewDeliverer(timeout, maxAttempts, backoff, logger)

	// handler
	eventHandler := mqhandler.NewWebhookEventHandler(
		subRepo, deliverer, deduper, retryCounter, dlqPublisher, logger,
	)

	// -------------------------
	// Task Event Consumer
	// -------------------------
	logger.Info("Init consumer: webhook.task.q")
	consumerTask, err := mq.NewConsumer(
		cfg.MQ.URL,
		"webhook.task.q",
		"task.*",
		logger,
	)
	if err != nil {
		logger.Fatal("Task consumer init failed", zap.Error(err))
	}
	consumerTask.SetHandler(eventHandler.Handle)

	go func() {
		if err := consumerTask.StartConsuming(); err != nil {
			logger.Fatal("Task consumer crashed", zap.Error(err))
		}
	}()
	defer consumerTask.Close()

	// -------------------------
	// Project Event Consumer
	// -------------------------
	logger.Info("Init consumer: webhook.project.q")
	consumerProject, err := mq.NewConsumer(
		cfg.MQ.URL,
		"webhook.project.q",
		"project.*",
		logger,
	)
	if err != nil {
		logger.Fatal("Project consumer init failed", zap.Error(err))
	}
	consumerProject.SetHandler(eventHandler.Handle)

	go func() {
		if err := consumerProject.StartConsuming(); err != nil {
			logger.Fatal("Project consumer crashed", zap.Error(err))
		}
	}()
	defer consumerProject.Close()

	logger.Info("Worker running")
	select {}
}
