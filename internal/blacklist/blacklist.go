// Package blacklist blocks IPs from a room and removes blocked participants from
// the media room.
package blacklist

import (
	"context"
	"fmt"
	"time"

	"meethub/backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Store is the blacklist part of the session store.
type Store interface {
	AddBlacklistEntry(ctx context.Context, roomID string, entry models.BlacklistEntry) (bool, error)
	RemoveBlacklistEntry(ctx context.Context, roomID, ip string) (bool, error)
	ListBlacklist(ctx context.Context, roomID string) ([]models.BlacklistEntry, error)
	IsBlacklisted(ctx context.Context, roomID, ip string) (bool, error)
}

// ParticipantRemover forces an identity out of the media room.
type ParticipantRemover interface {
	RemoveParticipant(ctx context.Context, room, identity string) error
}

type Enforcer struct {
	store Store
	media ParticipantRemover
	now   func() time.Time
}

func NewEnforcer(store Store, media ParticipantRemover) *Enforcer {
	return &Enforcer{store: store, media: media, now: time.Now}
}

// Add blocks ip. A duplicate ip is left untouched and reports added=false. The forced
// removal runs only for a new entry; its failure is returned wrapped in
// ErrForcedRemovalFailed alongside the already updated list.
func (e *Enforcer) Add(ctx context.Context, roomID, ip, name, userID string) (added bool, entries []models.BlacklistEntry, err error) {
	if ip == "" {
		return false, nil, ErrMissingIP
	}
	entry := models.BlacklistEntry{IP: ip, UserID: userID, Name: name, AddedAt: e.now().UnixMilli()}
	added, err = e.store.AddBlacklistEntry(ctx, roomID, entry)
	if err != nil {
		return false, nil, err
	}
	entries, err = e.store.ListBlacklist(ctx, roomID)
	if err != nil {
		return added, nil, err
	}
	if !added {
		log.Debug().Str("module", "blacklist").Str("room_id", roomID).Str("ip", ip).Msg("ip already blacklisted")
		return false, entries, nil
	}

	log.Info().Str("module", "blacklist").Str("room_id", roomID).Str("ip", ip).Str("user_id", userID).Msg("ip blacklisted")
	if userID != "" {
		if err := e.media.RemoveParticipant(ctx, roomID, userID); err != nil {
			log.Error().Err(err).Str("module", "blacklist").Str("room_id", roomID).Str("user_id", userID).Msg("forced removal failed")
			return true, entries, fmt.Errorf("%w: %v", ErrForcedRemovalFailed, err)
		}
	}
	return true, entries, nil
}

// Remove unblocks ip and returns the updated list.
func (e *Enforcer) Remove(ctx context.Context, roomID, ip string) ([]models.BlacklistEntry, error) {
	if ip == "" {
		return nil, ErrMissingIP
	}
	removed, err := e.store.RemoveBlacklistEntry(ctx, roomID, ip)
	if err != nil {
		return nil, err
	}
	if removed {
		log.Info().Str("module", "blacklist").Str("room_id", roomID).Str("ip", ip).Msg("ip unblocked")
	}
	return e.store.ListBlacklist(ctx, roomID)
}

func (e *Enforcer) IsBlocked(ctx context.Context, roomID, ip string) (bool, error) {
	if ip == "" {
		return false, nil
	}
	return e.store.IsBlacklisted(ctx, roomID, ip)
}

func (e *Enforcer) List(ctx context.Context, roomID string) ([]models.BlacklistEntry, error) {
	return e.store.ListBlacklist(ctx, roomID)
}
