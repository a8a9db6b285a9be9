package roomhub

import (
	"context"

	"meethub/backend/internal/models"
	"meethub/backend/internal/registry"

	"github.com/rs/zerolog/log"
)

// Audience selects which connections of a room receive a broadcast.
type Audience string

const (
	AudienceRoom  Audience = "room"
	AudienceHosts Audience = "hosts"
)

func (m *ManagerService) broadcast(ctx context.Context, roomID, event string, data any) {
	m.publish(ctx, roomID, AudienceRoom, event, data)
}

func (m *ManagerService) broadcastHosts(ctx context.Context, roomID, event string, data any) {
	m.publish(ctx, roomID, AudienceHosts, event, data)
}

func (m *ManagerService) publish(ctx context.Context, roomID string, audience Audience, event string, data any) {
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "roomhub").Str("event", event).Msg("failed to encode broadcast")
		return
	}
	m.deliverLocal(ctx, roomID, audience, env)
	if m.Fanout != nil {
		if err := m.Fanout.Publish(ctx, roomID, audience, env); err != nil {
			log.Error().Err(err).Str("module", "roomhub").Str("room_id", roomID).Msg("failed to publish broadcast")
		}
	}
}

// deliverLocal sends env to this instance's connections of the room. Guests only
// receive messages addressed to them directly.
func (m *ManagerService) deliverLocal(ctx context.Context, roomID string, audience Audience, env models.Envelope) {
	conns := m.Registry.RoomConnections(roomID)
	if len(conns) == 0 {
		return
	}
	var roleMap map[string]models.Role
	if audience == AudienceHosts {
		var err error
		roleMap, err = m.Roles.GetRoles(ctx, roomID)
		if err != nil {
			log.Error().Err(err).Str("module", "roomhub").Str("room_id", roomID).Msg("failed to resolve hosts")
			return
		}
	}
	for _, conn := range conns {
		if conn.IsGuest() {
			continue
		}
		if audience == AudienceHosts && !roleMap[conn.UserID].IsHost() {
			continue
		}
		m.deliver(conn, env)
	}
}

func (m *ManagerService) deliver(conn *registry.Connection, env models.Envelope) {
	if conn.Send(env) {
		return
	}
	log.Warn().Str("module", "roomhub").Str("handle", conn.Handle).Str("event", env.Event).Msg("send buffer full, closing connection")
	if conn.Client != nil {
		conn.Client.Close(ReasonProtocolError)
	}
}

// sendTo delivers an event to a single connection.
func (m *ManagerService) sendTo(conn *registry.Connection, event string, data any) {
	env, err := models.NewEnvelope(event, data)
	if err != nil {
		log.Error().Err(err).Str("module", "roomhub").Str("event", event).Msg("failed to encode message")
		return
	}
	m.deliver(conn, env)
}

// sendError reports a refused command to the offending connection only.
func (m *ManagerService) sendError(conn *registry.Connection, event, code string) {
	m.sendTo(conn, models.EventError, models.ErrorPayload{
		Event:   event,
		Code:    code,
		Message: m.Localizer.GetString(conn.Lang, code),
	})
}
