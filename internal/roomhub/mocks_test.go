package roomhub_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"meethub/backend/internal/analytics"
	"meethub/backend/internal/blacklist"
	"meethub/backend/internal/media"
	"meethub/backend/internal/models"
	"meethub/backend/internal/presentation"
	"meethub/backend/internal/recording"
	"meethub/backend/internal/registry"
	"meethub/backend/internal/roles"
	"meethub/backend/internal/roomhub"
	"meethub/backend/internal/storage"
	"meethub/backend/internal/waitingroom"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// captureClient records everything sent to a connection.
type captureClient struct {
	mu     sync.Mutex
	envs   []models.Envelope
	closed bool
	reason string
}

func (c *captureClient) Send(env models.Envelope) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envs = append(c.envs, env)
	return true
}

func (c *captureClient) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
}

func (c *captureClient) events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.envs))
	for _, e := range c.envs {
		out = append(out, e.Event)
	}
	return out
}

// last decodes the data of the most recent envelope for event into v.
func (c *captureClient) last(t *testing.T, event string, v any) bool {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.envs) - 1; i >= 0; i-- {
		if c.envs[i].Event == event {
			require.NoError(t, json.Unmarshal(c.envs[i].Data, v))
			return true
		}
	}
	return false
}

func (c *captureClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envs = nil
}

type MockMedia struct {
	mock.Mock
}

func (m *MockMedia) CreateRoom(ctx context.Context, room string) error {
	return m.Called(ctx, room).Error(0)
}

func (m *MockMedia) IssueToken(req media.TokenRequest) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

func (m *MockMedia) RemoveParticipant(ctx context.Context, room, identity string) error {
	return m.Called(ctx, room, identity).Error(0)
}

func (m *MockMedia) StartRecording(ctx context.Context, room, layout string) (string, error) {
	args := m.Called(ctx, room, layout)
	return args.String(0), args.Error(1)
}

func (m *MockMedia) StopRecording(ctx context.Context, egressID string) error {
	return m.Called(ctx, egressID).Error(0)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) PersistAttendance(ctx context.Context, roomID string, sessions []models.AnalyticsSession) error {
	return m.Called(ctx, roomID, sessions).Error(0)
}

// fakeRooms is an in-memory durable store.
type fakeRooms struct {
	mu       sync.Mutex
	rooms    map[string]*models.Room
	messages []models.ChatHistory
	files    []*models.File
}

func (f *fakeRooms) GetRoomByShortID(_ context.Context, shortID string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[shortID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRooms) SaveMessage(_ context.Context, msg *models.ChatHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = uint(len(f.messages) + 1)
	msg.CreatedAt = time.Now()
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeRooms) GetChatHistory(_ context.Context, roomID string) ([]models.ChatHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChatHistory
	for _, m := range f.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeRooms) SaveRecordingFile(_ context.Context, file *models.File) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, file)
	return true, nil
}

type fixture struct {
	hub   *roomhub.ManagerService
	rooms *fakeRooms
	media *MockMedia
	sink  *MockSink
	store *storage.RedisSessionStore
}

const (
	testRoom  = "abc-defg-hij"
	testOwner = "owner-1"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := storage.NewRedisSessionStore(client, "test:", time.Hour)
	rooms := &fakeRooms{rooms: map[string]*models.Room{
		testRoom: {
			ShortID:              testRoom,
			OwnerID:              testOwner,
			CanShareScreen:       models.LevelAll,
			CanStartPresentation: models.LevelAll,
			WaitingRoomEnabled:   true,
		},
	}}
	mm := new(MockMedia)
	mm.On("CreateRoom", mock.Anything, mock.Anything).Return(nil).Maybe()
	sink := new(MockSink)

	hub := roomhub.NewManagerService(roomhub.Deps{
		Rooms:          rooms,
		RateLimiter:    store,
		Roles:          roles.NewEngine(store, rooms),
		Waiting:        waitingroom.NewProtocol(store, mm),
		Presentations:  presentation.NewCoordinator(store),
		Recordings:     recording.NewCoordinator(store, mm, rooms, "grid"),
		Analytics:      analytics.NewReconstructor(store, sink),
		Blacklist:      blacklist.NewEnforcer(store, mm),
		Media:          mm,
		ChatRateLimit:  2,
		ChatRateWindow: time.Minute,
	})
	return &fixture{hub: hub, rooms: rooms, media: mm, sink: sink, store: store}
}

// join connects a user and returns its connection and captured output.
func (f *fixture) join(t *testing.T, userID, ip string, guest bool) (*registry.Connection, *captureClient) {
	t.Helper()
	client := &captureClient{}
	conn := registry.NewConnection(testRoom, userID, "name-"+userID, ip, userID == testOwner, guest, client)
	f.hub.Connect(context.Background(), conn)
	return conn, client
}

func (f *fixture) send(t *testing.T, conn *registry.Connection, event string, data any) {
	t.Helper()
	env, err := models.NewEnvelope(event, data)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	f.hub.HandleMessage(context.Background(), conn.Handle, raw)
}

func errorCodes(t *testing.T, c *captureClient) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var codes []string
	for _, e := range c.envs {
		if e.Event != models.EventError {
			continue
		}
		var p models.ErrorPayload
		require.NoError(t, json.Unmarshal(e.Data, &p))
		codes = append(codes, p.Code)
	}
	return codes
}
