package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"meethub/backend/internal/models"
	"meethub/backend/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if info := args.Get(0); info != nil {
		return info.(*asynq.TaskInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestAttendanceSink_Enqueues(t *testing.T) {
	enqueuer := new(MockEnqueuer)
	sink := tasks.NewAttendanceSink(enqueuer)
	sessions := []models.AnalyticsSession{{
		StartTime:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Participants: []models.AnalyticsParticipant{{UserID: "u1", Name: "Alice"}},
	}}

	enqueuer.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		if task.Type() != tasks.TypeAttendancePersist {
			return false
		}
		var payload tasks.AttendancePersistPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return false
		}
		return payload.RoomID == "room1" && len(payload.Sessions) == 1 && payload.Sessions[0].Participants[0].UserID == "u1"
	})).Return(&asynq.TaskInfo{ID: "task-1"}, nil)

	require.NoError(t, sink.PersistAttendance(context.Background(), "room1", sessions))
	enqueuer.AssertExpectations(t)
}

func TestAttendanceSink_EnqueueError(t *testing.T) {
	enqueuer := new(MockEnqueuer)
	sink := tasks.NewAttendanceSink(enqueuer)
	enqueuer.On("EnqueueContext", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))

	err := sink.PersistAttendance(context.Background(), "room1", nil)
	assert.ErrorContains(t, err, "room1")
}
