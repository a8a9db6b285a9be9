package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// bearerToken reads the identity token from the Authorization header, falling
// back to the token query parameter.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}

// GetAttendance returns the live attendance reconstruction of a room. Only hosts
// of the room may read it.
func (h *Handler) GetAttendance(c *gin.Context) {
	roomID := c.Param("roomId")
	identity, err := parseJWT(h.jwtSecret, bearerToken(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	ctx := c.Request.Context()
	role, err := h.Hub.Roles.RoleOf(ctx, roomID, identity.UserID)
	if err != nil {
		log.Error().Err(err).Str("module", "handler").Str("room_id", roomID).Msg("failed to read role")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}
	if !role.IsHost() {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	sessions, err := h.Hub.Analytics.Reconstruct(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "handler").Str("room_id", roomID).Msg("failed to reconstruct attendance")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load attendance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}
