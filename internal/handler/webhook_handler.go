package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"taskhub/internal/service"
)

type WebhookHandler struct {
	svc    *service.SubscriptionService
	logger *zap.Logger
}

func NewWebhookHandler(svc *service.SubscriptionService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{svc: svc, logger: logger}
}

// CreateSubscription handles POST /webhooks
func (h *WebhookHandler) CreateSubscription(c *gin.Context) {
	var in service.CreateSubscriptionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		writeError(c, h.logger, invalidBody())
		return
	}

	h.logger.Info("CreateSubscription request received",
		zap.String("url", in.URL),
		zap.Strings("events", in.Events),
	)

	sub, err := h.svc.Create(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// ListSubscriptions handles GET /webhooks
func (h *WebhookHandler) ListSubscriptions(c *gin.Context) {
	subs, err := h.svc.List(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"webhooks": subs})
}

// DeleteSubscription handles DELETE /webhooks/:id
func (h *WebhookHandler) DeleteSubscription(c *gin.Context) {
	id, err := parsePathID(c)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
