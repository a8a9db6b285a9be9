package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"meethub/backend/internal/models"
	"meethub/backend/internal/tasks"
	"meethub/backend/internal/worker"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAttendanceStore struct {
	mock.Mock
}

func (m *MockAttendanceStore) SaveAttendance(ctx context.Context, sessions []*models.AttendanceSession) error {
	args := m.Called(ctx, sessions)
	return args.Error(0)
}

func attendanceTask(t *testing.T) *asynq.Task {
	t.Helper()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	leave := start.Add(30 * time.Minute)
	task, err := tasks.NewAttendancePersistTask("room1", []models.AnalyticsSession{{
		StartTime: start,
		EndTime:   &leave,
		Participants: []models.AnalyticsParticipant{
			{UserID: "u1", Name: "Alice", Attendances: []models.Attendance{{JoinTime: start, LeaveTime: &leave}}},
			{UserID: "u2", Name: "Bob", Attendances: []models.Attendance{{JoinTime: start}, {JoinTime: start.Add(time.Minute), LeaveTime: &leave}}},
		},
	}})
	require.NoError(t, err)
	return task
}

func TestAttendancePersistenceHandler_Saves(t *testing.T) {
	store := new(MockAttendanceStore)
	handler := worker.NewAttendancePersistenceHandler(store)
	store.On("SaveAttendance", mock.Anything, mock.MatchedBy(func(s []*models.AttendanceSession) bool {
		return len(s) == 1 && s[0].RoomID == "room1" && len(s[0].Records) == 3 &&
			len(s[0].ParticipantIDs) == 2 && s[0].ParticipantIDs[1] == "u2"
	})).Return(nil)

	require.NoError(t, handler.ProcessTask(context.Background(), attendanceTask(t)))
	store.AssertExpectations(t)
}

func TestAttendancePersistenceHandler_StoreErrorIsRetried(t *testing.T) {
	store := new(MockAttendanceStore)
	handler := worker.NewAttendancePersistenceHandler(store)
	store.On("SaveAttendance", mock.Anything, mock.Anything).Return(errors.New("db down"))

	err := handler.ProcessTask(context.Background(), attendanceTask(t))
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestAttendancePersistenceHandler_BadPayloadSkipsRetry(t *testing.T) {
	store := new(MockAttendanceStore)
	handler := worker.NewAttendancePersistenceHandler(store)

	err := handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeAttendancePersist, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	store.AssertNotCalled(t, "SaveAttendance", mock.Anything, mock.Anything)
}
