// Package analytics keeps the append-only join/leave log of a room and
// reconstructs attendance sessions from it.
package analytics

import (
	"context"
	"time"

	"meethub/backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Store is the analytics part of the session store.
type Store interface {
	AppendAnalyticsEvent(ctx context.Context, roomID string, ev models.AnalyticsEvent) error
	AnalyticsEvents(ctx context.Context, roomID string) ([]models.AnalyticsEvent, error)
	SetActive(ctx context.Context, roomID, userID string, since int64) error
	RemoveActive(ctx context.Context, roomID, userID string) error
	ActiveParticipants(ctx context.Context, roomID string) (map[string]int64, error)
	TakeAnalytics(ctx context.Context, roomID string) ([]models.AnalyticsEvent, map[string]int64, error)
	RestoreAnalytics(ctx context.Context, roomID string, events []models.AnalyticsEvent, active map[string]int64) error
}

// Sink persists reconstructed sessions durably.
type Sink interface {
	PersistAttendance(ctx context.Context, roomID string, sessions []models.AnalyticsSession) error
}

type Reconstructor struct {
	store Store
	sink  Sink
	now   func() time.Time
}

func NewReconstructor(store Store, sink Sink) *Reconstructor {
	return &Reconstructor{store: store, sink: sink, now: time.Now}
}

// WithClock replaces the time source used for event timestamps.
func (r *Reconstructor) WithClock(now func() time.Time) *Reconstructor {
	r.now = now
	return r
}

func (r *Reconstructor) LogJoin(ctx context.Context, roomID, userID, name, ip string) error {
	ts := r.now().UnixMilli()
	ev := models.AnalyticsEvent{Type: models.AnalyticsJoin, UserID: userID, Name: name, IP: ip, Timestamp: ts}
	if err := r.store.AppendAnalyticsEvent(ctx, roomID, ev); err != nil {
		return err
	}
	return r.store.SetActive(ctx, roomID, userID, ts)
}

func (r *Reconstructor) LogLeave(ctx context.Context, roomID, userID string) error {
	ev := models.AnalyticsEvent{Type: models.AnalyticsLeave, UserID: userID, Timestamp: r.now().UnixMilli()}
	if err := r.store.AppendAnalyticsEvent(ctx, roomID, ev); err != nil {
		return err
	}
	return r.store.RemoveActive(ctx, roomID, userID)
}

// Reconstruct replays the room's log into attendance sessions.
func (r *Reconstructor) Reconstruct(ctx context.Context, roomID string) ([]models.AnalyticsSession, error) {
	events, err := r.store.AnalyticsEvents(ctx, roomID)
	if err != nil {
		return nil, err
	}
	active, err := r.store.ActiveParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return Reduce(events, active), nil
}

// Flush takes the room's log, hands the reconstructed sessions to the sink and
// drops them. Events logged while the flush runs stay for the next one. When the
// sink fails the taken log is put back.
func (r *Reconstructor) Flush(ctx context.Context, roomID string) error {
	events, active, err := r.store.TakeAnalytics(ctx, roomID)
	if err != nil {
		return err
	}
	sessions := Reduce(events, active)
	if len(sessions) == 0 {
		return nil
	}
	if err := r.sink.PersistAttendance(ctx, roomID, sessions); err != nil {
		if rerr := r.store.RestoreAnalytics(ctx, roomID, events, active); rerr != nil {
			log.Error().Err(rerr).Str("module", "analytics").Str("room_id", roomID).Msg("failed to restore attendance log")
		}
		return err
	}
	log.Info().Str("module", "analytics").Str("room_id", roomID).Int("sessions", len(sessions)).Msg("attendance flushed")
	return nil
}
