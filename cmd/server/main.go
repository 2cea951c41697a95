package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"taskhub/internal/auth"
	"taskhub/internal/config"
	"taskhub/internal/handler"
	"taskhub/internal/httpserver"
	"taskhub/internal/ratelimit"
	"taskhub/internal/repository"
	"taskhub/internal/service"
	"taskhub/pkg/db"
	"taskhub/pkg/logger"
	"taskhub/pkg/mq"
	"taskhub/pkg/outbox"

	"go.uber.org/zap"
)

func main() {
	// Load config
	cfg := config.Load()

	logger := logger.NewLogger()
	defer logger.Sync()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init MQ Publisher
	eventPublisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer eventPublisher.Close()

	// Init Repositories
	taskRepo := repository.NewTaskRepository(dbConn, logger)
	projectRepo := repository.NewProjectRepository(dbConn, logger)
	userRepo := repository.NewUserRepository(dbConn, logger)
	subRepo := repository.NewSubscriptionRepository(dbConn, logger)

	// Init Outbox
	outboxRepo := outbox.NewRepository(dbConn)
	emitter := outbox.NewEmitter(dbConn)
	replayService := outbox.NewReplayService(outboxRepo, eventPublisher)

	// Init Services
	taskService := service.NewTaskService(dbConn, taskRepo, projectRepo, userRepo, emitter, logger)
	projectService := service.NewProjectService(dbConn, projectRepo, userRepo, emitter, logger)
	userService := service.NewUserService(userRepo, logger)
	subService := service.NewSubscriptionService(subRepo, logger)

	// Init Handlers
	taskHandler := handler.NewTaskHandler(taskService, logger)
	projectHandler := handler.NewProjectHandler(projectService, logger)
	userHandler := handler.NewUserHandler(userService, logger)
	webhookHandler := handler.NewWebhookHandler(subService, logger)
	adminHandler := handler.NewAdminHandler(replayService, logger)

	// Auth + rate limit
	validator := auth.NewValidator(cfg.Auth.Secret)

	limit := cfg.RateLimit.Limit
	if limit <= 0 {
		limit = ratelimit.DefaultLimit
	}
	window := ratelimit.DefaultWindow
	if cfg.RateLimit.Window > 0 {
		window = time.Duration(cfg.RateLimit.Window) * time.Second
	}
	limiter := ratelimit.NewLimiter(limit, window)

	// Init Outbox Dispatcher（随进程信号停止）
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := outbox.NewDispatcher(outboxRepo, eventPublisher, logger)
	go dispatcher.Start(ctx)

	// Router
	router := httpserver.NewRouter(
		taskHandler,
		projectHandler,
		userHandler,
		webhookHandler,
		adminHandler,
		validator,
		limiter,
		logger,
		dbConn,
	)

	// Start API server
	logger.Info("Starting taskhub API server", zap.String("port", cfg.Server.Port))
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}
