package roomhub

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"meethub/backend/internal/blacklist"
	"meethub/backend/internal/config"
	"meethub/backend/internal/models"
	"meethub/backend/internal/presentation"
	"meethub/backend/internal/recording"
	"meethub/backend/internal/registry"

	"github.com/rs/zerolog/log"
)

// handleReady sends the initial state bundle to the connection.
func (m *ManagerService) handleReady(ctx context.Context, conn *registry.Connection) {
	logger := log.With().Str("module", "roomhub").Str("room_id", conn.RoomID).Str("user_id", conn.UserID).Logger()

	matrix, err := m.Roles.GetPermissionMatrix(ctx, conn.RoomID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load permissions")
		m.sendError(conn, models.EventReady, CodeInternal)
		return
	}
	m.sendTo(conn, models.EventPermissionsInit, matrix)

	roleMap, err := m.Roles.GetRoles(ctx, conn.RoomID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load roles")
		m.sendError(conn, models.EventReady, CodeInternal)
		return
	}
	m.sendTo(conn, models.EventRolesUpdated, roleMap)

	presentations, err := m.Presentations.List(ctx, conn.RoomID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load presentations")
	} else {
		m.sendTo(conn, models.EventPresentationsState, presentations)
	}

	room, err := m.Rooms.GetRoomByShortID(ctx, conn.RoomID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load room")
	} else if room.ShowHistoryToNewbies {
		history, err := m.Rooms.GetChatHistory(ctx, conn.RoomID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to load chat history")
		} else {
			messages := make([]models.ChatMessage, 0, len(history))
			for i := range history {
				messages = append(messages, history[i].ToChatMessage())
			}
			m.sendTo(conn, models.EventPreviousMessages, messages)
		}
	}

	if roleMap[conn.UserID].IsHost() {
		m.sendHostState(ctx, conn)
	}
}

// sendHostState sends the moderation views only hosts may see.
func (m *ManagerService) sendHostState(ctx context.Context, conn *registry.Connection) {
	if entries, err := m.Blacklist.List(ctx, conn.RoomID); err == nil {
		m.sendTo(conn, models.EventBlacklistInit, entries)
	} else {
		log.Error().Err(err).Str("module", "roomhub").Str("room_id", conn.RoomID).Msg("failed to load blacklist")
	}
	if queue, err := m.Waiting.Queue(ctx, conn.RoomID); err == nil {
		m.sendTo(conn, models.EventWaitingQueueUpdated, queue)
	} else {
		log.Error().Err(err).Str("module", "roomhub").Str("room_id", conn.RoomID).Msg("failed to load waiting queue")
	}
}

func (m *ManagerService) handleGuestJoinRequest(ctx context.Context, conn *registry.Connection, p models.GuestJoinRequestPayload) {
	if !conn.IsGuest() {
		log.Debug().Str("module", "roomhub").Str("user_id", conn.UserID).Msg("join request from admitted connection ignored")
		return
	}
	blocked, err := m.Blacklist.IsBlocked(ctx, conn.RoomID, conn.RemoteIP)
	if err != nil {
		m.sendError(conn, models.EventGuestJoinRequest, CodeInternal)
		return
	}
	if blocked {
		m.sendTo(conn, models.EventGuestRejected, models.GuestRejectedPayload{Reason: "blocked"})
		return
	}

	room, err := m.Rooms.GetRoomByShortID(ctx, conn.RoomID)
	if err != nil {
		log.Error().Err(err).Str("module", "roomhub").Str("room_id", conn.RoomID).Msg("failed to load room")
		m.sendError(conn, models.EventGuestJoinRequest, CodeInternal)
		return
	}

	name := p.Name
	if strings.TrimSpace(name) == "" {
		name = conn.Username
	}
	queue, err := m.Waiting.RequestJoin(ctx, conn.RoomID, conn.UserID, name)
	if err != nil {
		log.Error().Err(err).Str("module", "roomhub").Str("room_id", conn.RoomID).Msg("failed to queue guest")
		m.sendError(conn, models.EventGuestJoinRequest, CodeInternal)
		return
	}
	if !room.WaitingRoomEnabled {
		m.decide(ctx, conn, conn.UserID, true)
		return
	}
	m.broadcastHosts(ctx, conn.RoomID, models.EventWaitingQueueUpdated, queue)
}

func (m *ManagerService) handleHostApproval(ctx context.Context, conn *registry.Connection, p models.HostApprovalPayload) {
	if p.GuestID == "" {
		m.sendError(conn, models.EventHostApproval, CodeInvalidPayload)
		return
	}
	m.decide(ctx, conn, p.GuestID, p.Approved)
}

// decide applies a decision; caller receives any collaborator error.
func (m *ManagerService) decide(ctx context.Context, caller *registry.Connection, guestID string, approved bool) {
	roomID := caller.RoomID
	decision, err := m.Waiting.Decide(ctx, roomID, guestID, approved)
	if err != nil {
		log.Error().Err(err).Str("module", "roomhub").Str("room_id", roomID).Str("guest_id", guestID).Msg("guest decision failed")
		m.sendError(caller, models.EventHostApproval, errorCode(err))
		return
	}
	if decision == nil {
		return
	}

	guest := m.Registry.Find(roomID, guestID)
	if decision.Approved() {
		if guest != nil {
			m.sendTo(guest, models.EventGuestApproved, models.GuestApprovedPayload{Token: decision.Token})
			m.admit(ctx, guest)
		}
	} else if guest != nil {
		m.sendTo(guest, models.EventGuestRejected, models.GuestRejectedPayload{Reason: "rejected"})
	}
	m.broadcastHosts(ctx, roomID, models.EventWaitingQueueUpdated, decision.Queue)
}

// admit turns an approved guest connection into a participant.
func (m *ManagerService) admit(ctx context.Context, guest *registry.Connection) {
	guest.Admit()
	role, err := m.Roles.AssignDefaultRole(ctx, guest.RoomID, guest.UserID, false)
	if err != nil {
		log.Error().Err(err).Str("module", "roomhub").Str("user_id", guest.UserID).Msg("failed to assign role to admitted guest")
		return
	}
	if err := m.Analytics.LogJoin(ctx, guest.RoomID, guest.UserID, guest.Username, guest.RemoteIP); err != nil {
		log.Error().Err(err).Str("module", "roomhub").Str("user_id", guest.UserID).Msg("failed to log join")
	}
	m.broadcast(ctx, guest.RoomID, models.EventRoleUpdated, models.RoleUpdatedPayload{UserID: guest.UserID, Role: role})
}

func (m *ManagerService) handleUpdatePermission(ctx context.Context, conn *registry.Connection, p models.UpdatePermissionPayload) {
	row, err := m.Roles.SetPermission(ctx, conn.RoomID, p.TargetRole, p.Permission, p.Value)
	if err != nil {
		m.sendError(conn, models.EventUpdatePermission, errorCode(err))
		return
	}
	m.broadcast(ctx, conn.RoomID, models.EventPermissionsUpdated, models.PermissionsUpdatedPayload{Role: p.TargetRole, Permissions: row})
}

func (m *ManagerService) handleUpdateRole(ctx context.Context, conn *registry.Connection, p models.UpdateRolePayload) {
	if p.TargetUserID == "" {
		m.sendError(conn, models.EventUpdateRole, CodeInvalidPayload)
		return
	}
	if err := m.Roles.CheckRoleChange(ctx, conn.RoomID, p.TargetUserID, p.NewRole); err != nil {
		m.sendError(conn, models.EventUpdateRole, errorCode(err))
		return
	}
	if err := m.Roles.SetRole(ctx, conn.RoomID, p.TargetUserID, p.NewRole); err != nil {
		m.sendError(conn, models.EventUpdateRole, CodeInternal)
		return
	}
	log.Info().Str("module", "roomhub").Str("room_id", conn.RoomID).Str("target", p.TargetUserID).Str("role", string(p.NewRole)).Msg("role changed")
	m.broadcast(ctx, conn.RoomID, models.EventRoleUpdated, models.RoleUpdatedPayload{UserID: p.TargetUserID, Role: p.NewRole})

	if p.NewRole.IsHost() {
		if target := m.Registry.Find(conn.RoomID, p.TargetUserID); target != nil {
			m.sendHostState(ctx, target)
		}
	}
}

func (m *ManagerService) handlePresentationStarted(ctx context.Context, conn *registry.Connection, p models.PresentationStartedPayload) {
	allowed, err := m.Roles.Can(ctx, conn.RoomID, conn.UserID, models.PermissionStartPresentation)
	if err != nil {
		m.sendError(conn, models.EventPresentationStarted, CodeInternal)
		return
	}
	if !allowed {
		m.sendError(conn, models.EventPresentationStarted, CodePermissionDenied)
		return
	}
	started, finished, err := m.Presentations.Start(ctx, conn.RoomID, conn.UserID, presentation.StartRequest{FileID: p.FileID, URL: p.URL, Mode: p.Mode})
	if err != nil {
		m.sendError(conn, models.EventPresentationStarted, errorCode(err))
		return
	}
	if finished != nil {
		m.broadcast(ctx, conn.RoomID, models.EventPresentationFinished, models.PresentationFinishedPayload{PresentationID: finished.PresentationID})
	}
	m.broadcast(ctx, conn.RoomID, models.EventPresentationStarted, started)
}

func (m *ManagerService) handlePresentationMutation(ctx context.Context, conn *registry.Connection, env models.Envelope) {
	var (
		presentationID string
		mutation       presentation.Mutation
	)
	switch env.Event {
	case models.EventPresentationPageChanged:
		var p models.PresentationPagePayload
		if !decode(m, conn, env, &p) {
			return
		}
		presentationID, mutation = p.PresentationID, presentation.PageChange{Page: p.Page}
	case models.EventPresentationZoomChanged:
		var p models.PresentationZoomPayload
		if !decode(m, conn, env, &p) {
			return
		}
		presentationID, mutation = p.PresentationID, presentation.ZoomChange{Zoom: p.Zoom}
	case models.EventPresentationScrollChanged:
		var p models.PresentationScrollPayload
		if !decode(m, conn, env, &p) {
			return
		}
		presentationID, mutation = p.PresentationID, presentation.ScrollChange{X: p.X, Y: p.Y}
	case models.EventPresentationModeChanged:
		var p models.PresentationModePayload
		if !decode(m, conn, env, &p) {
			return
		}
		presentationID, mutation = p.PresentationID, presentation.ModeChange{Mode: p.Mode}
	}

	delta, err := m.Presentations.Mutate(ctx, conn.RoomID, presentationID, conn.UserID, mutation)
	if errors.Is(err, presentation.ErrPresentationNotFound) {
		log.Debug().Str("module", "roomhub").Str("presentation_id", presentationID).Msg("mutation of finished presentation ignored")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("module", "roomhub").Str("user_id", conn.UserID).Str("presentation_id", presentationID).Msg("presentation mutation refused")
		m.sendError(conn, env.Event, errorCode(err))
		return
	}
	m.broadcast(ctx, conn.RoomID, delta.Event, delta.Payload)
}

func (m *ManagerService) handlePresentationFinished(ctx context.Context, conn *registry.Connection, p models.PresentationFinishedPayload) {
	found, err := m.Presentations.Finish(ctx, conn.RoomID, p.PresentationID, conn.UserID, m.isHost(ctx, conn))
	if err != nil {
		m.sendError(conn, models.EventPresentationFinished, errorCode(err))
		return
	}
	if found {
		m.broadcast(ctx, conn.RoomID, models.EventPresentationFinished, p)
	}
}

func (m *ManagerService) handleRecordingStarted(ctx context.Context, conn *registry.Connection) {
	egressID, err := m.Recordings.Start(ctx, conn.RoomID, conn.UserID)
	if err != nil {
		log.Error().Err(err).Str("module", "roomhub").Str("room_id", conn.RoomID).Msg("failed to start recording")
		m.sendError(conn, models.EventRecordingStarted, CodeMediaUnavailable)
		return
	}
	m.broadcast(ctx, conn.RoomID, models.EventRecordingStarted, models.RecordingStartedPayload{EgressID: egressID})
}

func (m *ManagerService) handleRecordingFinished(ctx context.Context, conn *registry.Connection, p models.RecordingFinishedPayload) {
	if p.EgressID == "" {
		m.sendError(conn, models.EventRecordingFinished, CodeInvalidPayload)
		return
	}
	err := m.Recordings.Stop(ctx, conn.RoomID, p.EgressID)
	if errors.Is(err, recording.ErrRecordingNotFound) {
		log.Debug().Str("module", "roomhub").Str("room_id", conn.RoomID).Str("egress_id", p.EgressID).Msg("stop for unknown recording ignored")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("module", "roomhub").Str("egress_id", p.EgressID).Msg("failed to stop recording")
		m.sendError(conn, models.EventRecordingFinished, CodeMediaUnavailable)
		return
	}
	m.broadcast(ctx, conn.RoomID, models.EventRecordingFinished, p)
}

func (m *ManagerService) handleAddToBlacklist(ctx context.Context, conn *registry.Connection, p models.AddToBlacklistPayload) {
	target := m.Registry.Find(conn.RoomID, p.UserID)
	if target == nil {
		m.sendError(conn, models.EventAddToBlacklist, CodeUserNotConnected)
		return
	}
	if m.roleOf(ctx, target) == models.RoleOwner {
		m.sendError(conn, models.EventAddToBlacklist, CodeOwnerImmutable)
		return
	}
	name := p.Name
	if name == "" {
		name = target.Username
	}

	added, entries, err := m.Blacklist.Add(ctx, conn.RoomID, target.RemoteIP, name, target.UserID)
	if err != nil && !errors.Is(err, blacklist.ErrForcedRemovalFailed) {
		m.sendError(conn, models.EventAddToBlacklist, errorCode(err))
		return
	}
	if err != nil {
		m.sendError(conn, models.EventAddToBlacklist, CodeMediaUnavailable)
	}
	if !added {
		return
	}
	m.broadcastHosts(ctx, conn.RoomID, models.EventBlacklistUpdated, entries)

	for _, c := range m.Registry.RoomConnections(conn.RoomID) {
		if c.RemoteIP != target.RemoteIP || c.Client == nil || c.UserID == conn.UserID {
			continue
		}
		// The owner is never blocked, even behind the same address.
		if m.roleOf(ctx, c) == models.RoleOwner {
			continue
		}
		c.Client.Close(ReasonBlacklisted)
	}
}

func (m *ManagerService) handleRemoveFromBlacklist(ctx context.Context, conn *registry.Connection, p models.RemoveFromBlacklistPayload) {
	entries, err := m.Blacklist.Remove(ctx, conn.RoomID, p.IP)
	if err != nil {
		m.sendError(conn, models.EventRemoveFromBlacklist, errorCode(err))
		return
	}
	m.broadcastHosts(ctx, conn.RoomID, models.EventBlacklistUpdated, entries)
}

func (m *ManagerService) handleNewMessage(ctx context.Context, conn *registry.Connection, p models.NewMessagePayload) {
	text := strings.TrimSpace(p.Message)
	if text == "" {
		return
	}
	if utf8.RuneCountInString(text) > config.MaxChatMessageLength {
		m.sendError(conn, models.EventNewMessage, CodeMessageTooLong)
		return
	}
	if m.RateLimiter != nil && m.ChatRateLimit > 0 {
		limited, err := m.RateLimiter.CheckRateLimit(ctx, "chat:"+conn.RoomID+":"+conn.UserID, m.ChatRateLimit, m.ChatRateWindow)
		if err != nil {
			log.Error().Err(err).Str("module", "roomhub").Msg("rate limit check failed")
		} else if limited {
			m.sendError(conn, models.EventNewMessage, CodeRateLimited)
			return
		}
	}

	history := &models.ChatHistory{RoomID: conn.RoomID, SenderID: conn.UserID, SenderName: conn.Username, Content: text}
	if err := m.Rooms.SaveMessage(ctx, history); err != nil {
		log.Error().Err(err).Str("module", "roomhub").Str("room_id", conn.RoomID).Msg("failed to save chat message")
		m.sendError(conn, models.EventNewMessage, CodeInternal)
		return
	}
	m.broadcast(ctx, conn.RoomID, models.EventNewMessage, history.ToChatMessage())
}
