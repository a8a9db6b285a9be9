package roomhub

import (
	"context"
	"errors"
	"time"

	"meethub/backend/internal/analytics"
	"meethub/backend/internal/blacklist"
	"meethub/backend/internal/localization"
	"meethub/backend/internal/models"
	"meethub/backend/internal/presentation"
	"meethub/backend/internal/recording"
	"meethub/backend/internal/registry"
	"meethub/backend/internal/roles"
	"meethub/backend/internal/waitingroom"

	"github.com/rs/zerolog/log"
)

const requestTimeout = 10 * time.Second

// RoomStore is the durable side the gateway reads rooms from and writes chat to.
type RoomStore interface {
	GetRoomByShortID(ctx context.Context, shortID string) (*models.Room, error)
	SaveMessage(ctx context.Context, msg *models.ChatHistory) error
	GetChatHistory(ctx context.Context, roomID string) ([]models.ChatHistory, error)
}

// RateLimiter reports whether key exceeded limit within window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RoomCreator provisions the media room ahead of the first publisher.
type RoomCreator interface {
	CreateRoom(ctx context.Context, room string) error
}

// Deps are the collaborators of the gateway.
type Deps struct {
	Registry      *registry.Registry
	Rooms         RoomStore
	RateLimiter   RateLimiter
	Roles         *roles.Engine
	Waiting       *waitingroom.Protocol
	Presentations *presentation.Coordinator
	Recordings    *recording.Coordinator
	Analytics     *analytics.Reconstructor
	Blacklist     *blacklist.Enforcer
	Localizer     *localization.Localizer
	// Fanout is optional; without it broadcasts reach local connections only.
	Fanout *Fanout
	// Media is optional; when set the owner's connect provisions the media room.
	Media RoomCreator

	ChatRateLimit  int
	ChatRateWindow time.Duration
}

// ManagerService routes inbound realtime events to the coordinators and fans the
// results out to the right audience.
type ManagerService struct {
	Deps
}

func NewManagerService(deps Deps) *ManagerService {
	if deps.Registry == nil {
		deps.Registry = registry.New()
	}
	if deps.Localizer == nil {
		deps.Localizer = localization.Embedded()
	}
	return &ManagerService{Deps: deps}
}

// Connect registers a new connection. Admitted connections get their default role
// and a join entry in the attendance log; guests wait for admission.
func (m *ManagerService) Connect(ctx context.Context, conn *registry.Connection) {
	m.Registry.Register(conn)
	logger := log.With().Str("module", "roomhub").Str("room_id", conn.RoomID).Str("user_id", conn.UserID).Logger()

	if conn.IsGuest() {
		logger.Info().Str("handle", conn.Handle).Msg("guest connected")
		return
	}
	if conn.IsHost && m.Media != nil {
		if err := m.Media.CreateRoom(ctx, conn.RoomID); err != nil {
			logger.Error().Err(err).Msg("failed to create media room")
		}
	}
	if _, err := m.Roles.AssignDefaultRole(ctx, conn.RoomID, conn.UserID, conn.IsHost); err != nil {
		logger.Error().Err(err).Msg("failed to assign default role")
	}
	if err := m.Analytics.LogJoin(ctx, conn.RoomID, conn.UserID, conn.Username, conn.RemoteIP); err != nil {
		logger.Error().Err(err).Msg("failed to log join")
	}
	logger.Info().Str("handle", conn.Handle).Msg("participant connected")
}

// Disconnect unregisters the connection and cleans up what it owned. It is safe to
// call more than once for the same handle.
func (m *ManagerService) Disconnect(handle string) {
	conn, roomEmpty := m.Registry.Unregister(handle)
	if conn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	logger := log.With().Str("module", "roomhub").Str("room_id", conn.RoomID).Str("user_id", conn.UserID).Logger()

	if conn.IsGuest() {
		queue, err := m.Waiting.Remove(ctx, conn.RoomID, conn.UserID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to remove waiting guest")
		} else if queue != nil {
			m.broadcastHosts(ctx, conn.RoomID, models.EventWaitingQueueUpdated, queue)
		}
	} else if m.Registry.Find(conn.RoomID, conn.UserID) == nil {
		// Only the user's last connection releases what the user owns.
		m.releaseUser(ctx, conn)
	}

	if roomEmpty {
		if err := m.Analytics.Flush(ctx, conn.RoomID); err != nil {
			logger.Error().Err(err).Msg("failed to flush attendance")
		}
	}
	logger.Info().Str("handle", handle).Bool("room_empty", roomEmpty).Msg("connection closed")
}

func (m *ManagerService) releaseUser(ctx context.Context, conn *registry.Connection) {
	logger := log.With().Str("module", "roomhub").Str("room_id", conn.RoomID).Str("user_id", conn.UserID).Logger()

	p, err := m.Presentations.FinishByAuthor(ctx, conn.RoomID, conn.UserID)
	switch {
	case err == nil:
		m.broadcast(ctx, conn.RoomID, models.EventPresentationFinished, models.PresentationFinishedPayload{PresentationID: p.PresentationID})
	case errors.Is(err, presentation.ErrPresentationNotFound):
	default:
		logger.Error().Err(err).Msg("failed to finish presentation")
	}

	egressID, err := m.Recordings.StopByUser(ctx, conn.RoomID, conn.UserID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to stop recording")
	} else if egressID != "" {
		m.broadcast(ctx, conn.RoomID, models.EventRecordingFinished, models.RecordingFinishedPayload{EgressID: egressID})
	}

	if err := m.Analytics.LogLeave(ctx, conn.RoomID, conn.UserID); err != nil {
		logger.Error().Err(err).Msg("failed to log leave")
	}
}

// roleOf returns the connection's current role. Guests have none.
func (m *ManagerService) roleOf(ctx context.Context, conn *registry.Connection) models.Role {
	if conn.IsGuest() {
		return ""
	}
	role, err := m.Roles.RoleOf(ctx, conn.RoomID, conn.UserID)
	if err != nil {
		log.Error().Err(err).Str("module", "roomhub").Str("user_id", conn.UserID).Msg("failed to read role")
		return ""
	}
	return role
}

func (m *ManagerService) isHost(ctx context.Context, conn *registry.Connection) bool {
	return m.roleOf(ctx, conn).IsHost()
}
