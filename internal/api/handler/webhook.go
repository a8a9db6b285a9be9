package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// MediaWebhook receives recording callbacks from the media server.
func (h *Handler) MediaWebhook(c *gin.Context) {
	n, err := h.Webhooks.Receive(c.Request)
	if err != nil {
		log.Warn().Err(err).Str("module", "handler").Msg("rejected media webhook")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook"})
		return
	}

	file, err := h.Hub.Recordings.HandleCompletion(c.Request.Context(), n)
	if err != nil {
		log.Error().Err(err).Str("module", "handler").Str("egress_id", n.EgressID).Msg("failed to handle recording completion")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to process webhook"})
		return
	}
	if file == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": file})
}
