package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskhub/internal/service"
)

type ProjectHandler struct {
	svc    *service.ProjectService
	logger *zap.Logger
}

func NewProjectHandler(svc *service.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{svc: svc, logger: logger}
}

// CreateProject handles POST /projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var in service.CreateProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, h.logger, invalidBody())
		return
	}

	h.logger.Info("CreateProject request received",
		zap.String("name", in.Name),
		zap.Int64("owner_id", in.OwnerID),
		zap.String("client_ip", c.ClientIP()),
	)

	project, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, project)
}

// GetProject handles GET /projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, err := parsePathID(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	project, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// ListProjects handles GET /projects
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	in := service.ListProjectsInput{
		Status: c.Query("status"),
	}

	var err error
	if in.OwnerID, err = parseQueryInt64Ptr(c, "owner_id"); err != nil {
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

	projects, pagination, err := h.svc.List(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"projects":   projects,
		"pagination": pagination,
	})
}

// UpdateProject handles PATCH /projects/:id
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	id, err := parsePathID(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	var in service.UpdateProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, h.logger, invalidBody())
		return
	}

	project, err := h.svc.Update(c.Request.Context(), id, in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, project)
}

// UpdateProjectStatus handles PATCH /projects/:id/status
func (h *ProjectHandler) UpdateProjectStatus(c *gin.Context) {
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

	project, err := h.svc.UpdateStatus(c.Request.Context(), id, in.Status)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, project)
}
