package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskhub/internal/auth"
	"taskhub/internal/service"
)

type TaskHandler struct {
	svc    *service.TaskService
	logger *zap.Logger
}

func NewTaskHandler(svc *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{svc: svc, logger: logger}
}

// CreateTask handles POST /tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var in service.CreateTaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, h.logger, invalidBody())
		return
	}

	h.logger.Info("CreateTask request received",
		zap.String("title", in.Title),
		zap.Int64("project_id", in.ProjectID),
		zap.String("client_ip", c.ClientIP()),
	)

	task, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// GetTask handles GET /tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	id, err := parsePathID(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	task, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// ListTasks handles GET /tasks with filters and pagination
func (h *TaskHandler) ListTasks(c *gin.Context) {
	in := service.ListTasksInput{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
	}

	var err error
	if in.ProjectID, err = parseQueryInt64Ptr(c, "project_id"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if in.AssigneeID, err = parseQueryInt64Ptr(c, "assignee_id"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if in.Page, err = parsePageQueryInt(c, "page"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if in.Limit, err = parsePageQueryInt(c, "limit"); err != nil {
		writeError(c, h.logger, err)
		return
	}

	tasks, pagination, err := h.svc.List(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":      tasks,
		"pagination": pagination,
	})
}

// UpdateTask handles PATCH /tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, err := parsePathID(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	var in service.UpdateTaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, h.logger, invalidBody())
		return
	}

	task, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus handles PATCH /tasks/:id/status
func (h *TaskHandler) UpdateTaskStatus(c *gin.Context) {
	id, err := parsePathID(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	var in struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, h.logger, invalidBody())
		return
	}

	h.logger.Info("UpdateTaskStatus request received",
		zap.Int64("task_id", id),
		zap.String("status", in.Status),
	)

	actor := ""
	if p := auth.PrincipalFromContext(c); p != nil {
		actor = p.Subject
	}

	task, err := h.svc.UpdateStatus(c.Request.Context(), id, in.Status, actor)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, task)
}
