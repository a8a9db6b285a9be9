package handler

import (
	"errors"
	"net/http"

	"meethub/backend/internal/localization"
	"meethub/backend/internal/registry"
	"meethub/backend/internal/roomhub"
	"meethub/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are not restricted; the identity token authenticates the caller.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket validates the handshake and upgrades to a realtime connection.
// Every rejection happens before the upgrade.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	roomID := c.Query("roomId")
	token := c.Query("token")
	if roomID == "" || token == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "roomId and token are required"})
		return
	}

	identity, err := parseJWT(h.jwtSecret, token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
		return
	}

	ctx := c.Request.Context()
	room, err := h.Hub.Rooms.GetRoomByShortID(ctx, roomID)
	if errors.Is(err, storage.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Room not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "handler").Str("room_id", roomID).Msg("failed to load room")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load room"})
		return
	}

	isHost := room.OwnerID == identity.UserID
	remoteIP := c.ClientIP()
	if !isHost {
		blocked, err := h.Hub.Blacklist.IsBlocked(ctx, roomID, remoteIP)
		if err != nil {
			log.Error().Err(err).Str("module", "handler").Str("room_id", roomID).Msg("failed to check blacklist")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
			return
		}
		if blocked {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
	}

	// Without a role in the room the caller must pass the waiting room when it is on.
	role, err := h.Hub.Roles.RoleOf(ctx, roomID, identity.UserID)
	if err != nil {
		log.Error().Err(err).Str("module", "handler").Str("room_id", roomID).Msg("failed to read role")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check access"})
		return
	}
	isGuest := !isHost && role == "" && (room.WaitingRoomEnabled || c.Query("guest") == "1")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Warn().Err(err).Str("module", "handler").Msg("websocket upgrade failed")
		return
	}

	name := identity.Name
	if name == "" {
		name = "Guest"
	}
	client := roomhub.NewWebSocketClient(ws, h.Hub)
	conn := registry.NewConnection(roomID, identity.UserID, name, remoteIP, isHost, isGuest, client)
	conn.Lang = localization.Normalize(c.Query("lang"))
	client.Handle = conn.Handle

	h.Hub.Connect(ctx, conn)
	client.Run()
}
