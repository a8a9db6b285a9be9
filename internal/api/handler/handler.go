package handler

import (
	"time"

	"meethub/backend/internal/media"
	"meethub/backend/internal/roomhub"

	"github.com/gin-gonic/gin"
)

// Handler holds the collaborators of the HTTP surface.
type Handler struct {
	Hub      *roomhub.ManagerService
	Webhooks media.WebhookReceiver

	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewHandler(hub *roomhub.ManagerService, webhooks media.WebhookReceiver, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{
		Hub:       hub,
		Webhooks:  webhooks,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
	}
}

// RegisterRoutes mounts every endpoint on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/identity", h.IssueIdentity)
	r.GET("/ws", h.ServeWebSocket)
	r.POST("/webhooks/media", h.MediaWebhook)
	r.GET("/rooms/:roomId/attendance", h.GetAttendance)
}
