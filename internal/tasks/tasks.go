package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"meethub/backend/internal/models"

	"github.com/hibiken/asynq"
)

const (
	// TypeAttendancePersist writes flushed attendance sessions to the durable store.
	TypeAttendancePersist = "attendance:persist"

	attendanceMaxRetry = 10
)

// AttendancePersistPayload is the payload of a TypeAttendancePersist task.
type AttendancePersistPayload struct {
	RoomID   string                    `json:"roomId"`
	Sessions []models.AnalyticsSession `json:"sessions"`
}

// NewAttendancePersistTask creates the task for one room flush.
func NewAttendancePersistTask(roomID string, sessions []models.AnalyticsSession) (*asynq.Task, error) {
	payload, err := json.Marshal(AttendancePersistPayload{RoomID: roomID, Sessions: sessions})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAttendancePersist, payload, asynq.MaxRetry(attendanceMaxRetry)), nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AttendanceSink hands flushed attendance to the background worker.
type AttendanceSink struct {
	client Enqueuer
}

func NewAttendanceSink(client Enqueuer) *AttendanceSink {
	return &AttendanceSink{client: client}
}

func (s *AttendanceSink) PersistAttendance(ctx context.Context, roomID string, sessions []models.AnalyticsSession) error {
	task, err := NewAttendancePersistTask(roomID, sessions)
	if err != nil {
		return fmt.Errorf("build attendance task for room %s: %w", roomID, err)
	}
	if _, err := s.client.EnqueueContext(ctx, task, asynq.Queue("default")); err != nil {
		return fmt.Errorf("enqueue attendance task for room %s: %w", roomID, err)
	}
	return nil
}
