package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taskhub/internal/auth"
	"taskhub/internal/handler"
	"taskhub/internal/ratelimit"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	taskHandler *handler.TaskHandler,
	projectHandler *handler.ProjectHandler,
	userHandler *handler.UserHandler,
	webhookHandler *handler.WebhookHandler,
	adminHandler *handler.AdminHandler,
	validator *auth.Validator,
	limiter *ratelimit.Limiter,
	logger *zap.Logger,
	db *pgxpool.Pool,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLog(logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected: 认证 → 限流 → scope 检查 → handler
	api := r.Group("/")
	api.Use(Authenticate(validator))
	api.Use(RateLimit(limiter))
	{
		api.POST("/tasks", RequireScope(auth.ScopeTasksWrite), taskHandler.CreateTask)
		api.GET("/tasks", RequireScope(auth.ScopeTasksRead), taskHandler.ListTasks)
		api.GET("/tasks/:id", RequireScope(auth.ScopeTasksRead), taskHandler.GetTask)
		api.PATCH("/tasks/:id", RequireScope(auth.ScopeTasksWrite), taskHandler.UpdateTask)
		api.PATCH("/tasks/:id/status", RequireScope(auth.ScopeTasksWrite), taskHandler.UpdateTaskStatus)

		api.POST("/projects", RequireScope(auth.ScopeProjectsWrite), projectHandler.CreateProject)
		api.GET("/projects", RequireScope(auth.ScopeProjectsRead), projectHandler.ListProjects)
		api.GET("/projects/:id", RequireScope(auth.ScopeProjectsRead), projectHandler.GetProject)
		api.PATCH("/projects/:id", RequireScope(auth.ScopeProjectsWrite), projectHandler.UpdateProject)
		api.PATCH("/projects/:id/status", RequireScope(auth.ScopeProjectsWrite), projectHandler.UpdateProjectStatus)

		api.POST("/users", RequireScope(auth.ScopeUsersWrite), userHandler.CreateUser)
		api.GET("/users", RequireScope(auth.ScopeUsersRead), userHandler.ListUsers)
		api.GET("/users/:id", RequireScope(auth.ScopeUsersRead), userHandler.GetUser)

		api.POST("/webhooks", RequireScope(auth.ScopeWebhooksManage), webhookHandler.CreateSubscription)
		api.GET("/webhooks", RequireScope(auth.ScopeWebhooksManage), webhookHandler.ListSubscriptions)
		api.DELETE("/webhooks/:id", RequireScope(auth.ScopeWebhooksManage), webhookHandler.DeleteSubscription)

		api.POST("/admin/outbox/replay", RequireScope(auth.ScopeWebhooksManage), adminHandler.ReplayOutboxEvent)
		api.POST("/admin/outbox/replay-failed", RequireScope(auth.ScopeWebhooksManage), adminHandler.ReplayFailedEvents)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
