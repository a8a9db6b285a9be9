package roomhub

import (
	"context"
	"encoding/json"

	"meethub/backend/internal/models"
	"meethub/backend/internal/registry"

	"github.com/rs/zerolog/log"
)

// hostOnly lists the events that require an owner or admin.
var hostOnly = map[string]bool{
	models.EventHostApproval:        true,
	models.EventUpdatePermission:    true,
	models.EventUpdateRole:          true,
	models.EventRecordingStarted:    true,
	models.EventRecordingFinished:   true,
	models.EventAddToBlacklist:      true,
	models.EventRemoveFromBlacklist: true,
}

// HandleMessage decodes one inbound frame of the connection behind handle and
// dispatches it. Faults are reported to that connection only.
func (m *ManagerService) HandleMessage(ctx context.Context, handle string, raw []byte) {
	conn := m.Registry.FindByHandle(handle)
	if conn == nil {
		return
	}
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		m.sendError(conn, "", CodeInvalidPayload)
		return
	}
	if conn.IsGuest() && env.Event != models.EventGuestJoinRequest {
		m.sendError(conn, env.Event, CodeNotAdmitted)
		return
	}
	if hostOnly[env.Event] && !m.isHost(ctx, conn) {
		log.Warn().Str("module", "roomhub").Str("room_id", conn.RoomID).Str("user_id", conn.UserID).Str("event", env.Event).Msg("host-only event from non-host")
		m.sendError(conn, env.Event, CodeNotHost)
		return
	}

	switch env.Event {
	case models.EventReady:
		m.handleReady(ctx, conn)
	case models.EventGuestJoinRequest:
		var p models.GuestJoinRequestPayload
		if decode(m, conn, env, &p) {
			m.handleGuestJoinRequest(ctx, conn, p)
		}
	case models.EventHostApproval:
		var p models.HostApprovalPayload
		if decode(m, conn, env, &p) {
			m.handleHostApproval(ctx, conn, p)
		}
	case models.EventUpdatePermission:
		var p models.UpdatePermissionPayload
		if decode(m, conn, env, &p) {
			m.handleUpdatePermission(ctx, conn, p)
		}
	case models.EventUpdateRole:
		var p models.UpdateRolePayload
		if decode(m, conn, env, &p) {
			m.handleUpdateRole(ctx, conn, p)
		}
	case models.EventPresentationStarted:
		var p models.PresentationStartedPayload
		if decode(m, conn, env, &p) {
			m.handlePresentationStarted(ctx, conn, p)
		}
	case models.EventPresentationPageChanged,
		models.EventPresentationZoomChanged,
		models.EventPresentationScrollChanged,
		models.EventPresentationModeChanged:
		m.handlePresentationMutation(ctx, conn, env)
	case models.EventPresentationFinished:
		var p models.PresentationFinishedPayload
		if decode(m, conn, env, &p) {
			m.handlePresentationFinished(ctx, conn, p)
		}
	case models.EventRecordingStarted:
		m.handleRecordingStarted(ctx, conn)
	case models.EventRecordingFinished:
		var p models.RecordingFinishedPayload
		if decode(m, conn, env, &p) {
			m.handleRecordingFinished(ctx, conn, p)
		}
	case models.EventAddToBlacklist:
		var p models.AddToBlacklistPayload
		if decode(m, conn, env, &p) {
			m.handleAddToBlacklist(ctx, conn, p)
		}
	case models.EventRemoveFromBlacklist:
		var p models.RemoveFromBlacklistPayload
		if decode(m, conn, env, &p) {
			m.handleRemoveFromBlacklist(ctx, conn, p)
		}
	case models.EventNewMessage:
		var p models.NewMessagePayload
		if decode(m, conn, env, &p) {
			m.handleNewMessage(ctx, conn, p)
		}
	default:
		m.sendError(conn, env.Event, CodeUnknownEvent)
	}
}

// decode unmarshals the envelope data into v, reporting invalid payloads.
func decode(m *ManagerService, conn *registry.Connection, env models.Envelope, v any) bool {
	if len(env.Data) == 0 {
		return true
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		m.sendError(conn, env.Event, CodeInvalidPayload)
		return false
	}
	return true
}
