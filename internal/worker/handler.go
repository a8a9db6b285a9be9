package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"meethub/backend/internal/models"
	"meethub/backend/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

// AttendanceStore persists attendance sessions.
type AttendanceStore interface {
	SaveAttendance(ctx context.Context, sessions []*models.AttendanceSession) error
}

// AttendancePersistenceHandler processes TypeAttendancePersist tasks.
type AttendancePersistenceHandler struct {
	store AttendanceStore
}

func NewAttendancePersistenceHandler(store AttendanceStore) *AttendancePersistenceHandler {
	return &AttendancePersistenceHandler{store: store}
}

// ProcessTask implements asynq.Handler.
func (h *AttendancePersistenceHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	retry, _ := asynq.GetRetryCount(ctx)
	logger := log.With().Str("module", "worker").Str("task_id", taskID).Str("task_type", t.Type()).Int("retry", retry).Logger()

	var payload tasks.AttendancePersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logger.Error().Err(err).Msg("failed to unmarshal attendance payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if len(payload.Sessions) == 0 {
		return nil
	}

	sessions := make([]*models.AttendanceSession, 0, len(payload.Sessions))
	for _, s := range payload.Sessions {
		sessions = append(sessions, models.NewAttendanceSession(payload.RoomID, s))
	}
	if err := h.store.SaveAttendance(ctx, sessions); err != nil {
		logger.Error().Err(err).Str("room_id", payload.RoomID).Msg("failed to save attendance")
		return fmt.Errorf("failed to save attendance for room %s: %w", payload.RoomID, err)
	}
	logger.Info().Str("room_id", payload.RoomID).Int("sessions", len(sessions)).Msg("attendance persisted")
	return nil
}
