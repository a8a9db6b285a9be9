package storage_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"meethub/backend/internal/models"
	"meethub/backend/internal/storage"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*storage.RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewRedisSessionStore(client, "test:", time.Hour), mr
}

func TestSessionStore_SetRoleIfAbsent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	role, err := store.SetRoleIfAbsent(ctx, "room1", "u1", models.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)

	role, err = store.SetRoleIfAbsent(ctx, "room1", "u1", models.RoleParticipant)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role, "first assignment wins")

	require.NoError(t, store.SetRole(ctx, "room1", "u1", models.RoleAdmin))
	got, err := store.GetRole(ctx, "room1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got)

	_, err = store.GetRole(ctx, "room1", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessionStore_KeysHaveTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.SetRoleIfAbsent(ctx, "room1", "u1", models.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, mr.TTL("test:room:room1:roles"))

	mr.FastForward(2 * time.Hour)
	roles, err := store.GetRoles(ctx, "room1")
	require.NoError(t, err)
	assert.Empty(t, roles)
}

func TestSessionStore_Permissions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, found, err := store.GetPermissions(ctx, "room1")
	require.NoError(t, err)
	assert.False(t, found)

	matrix := models.PermissionMatrix{
		models.RoleOwner:       {CanShareScreen: true, CanStartPresentation: true},
		models.RoleAdmin:       {CanShareScreen: true},
		models.RoleParticipant: {},
	}
	require.NoError(t, store.InitPermissions(ctx, "room1", matrix))
	require.NoError(t, store.SetPermission(ctx, "room1", models.RoleParticipant, models.PermissionShareScreen, true))

	// A second derivation must not clobber the live edit.
	require.NoError(t, store.InitPermissions(ctx, "room1", matrix))

	got, found, err := store.GetPermissions(ctx, "room1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, got[models.RoleParticipant].CanShareScreen)
	assert.False(t, got[models.RoleParticipant].CanStartPresentation)
	assert.True(t, got[models.RoleOwner].CanStartPresentation)
	assert.False(t, got[models.RoleAdmin].CanStartPresentation)
}

func TestSessionStore_WaitingQueueOrder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"g3", "g1", "g2"} {
		added, err := store.EnqueueGuest(ctx, "room1", models.WaitingGuest{GuestID: id, Name: id, RequestedAt: int64(100 + i)})
		require.NoError(t, err)
		assert.True(t, added)
	}
	added, err := store.EnqueueGuest(ctx, "room1", models.WaitingGuest{GuestID: "g3", Name: "again", RequestedAt: 500})
	require.NoError(t, err)
	assert.False(t, added)

	queue, err := store.ListWaitingGuests(ctx, "room1")
	require.NoError(t, err)
	require.Len(t, queue, 3)
	assert.Equal(t, "g3", queue[0].GuestID)
	assert.Equal(t, "g3", queue[0].Name)
	assert.Equal(t, "g1", queue[1].GuestID)
	assert.Equal(t, "g2", queue[2].GuestID)
}

func TestSessionStore_RemoveWaitingGuestIsExclusive(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.EnqueueGuest(ctx, "room1", models.WaitingGuest{GuestID: "g1", Name: "Guest", RequestedAt: 1})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			removed, err := store.RemoveWaitingGuest(ctx, "room1", "g1")
			assert.NoError(t, err)
			if removed {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	_, err = store.GetWaitingGuest(ctx, "room1", "g1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessionStore_StartPresentationReplacesAuthorsPrevious(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	prev, err := store.StartPresentation(ctx, "room1", models.Presentation{PresentationID: "p1", AuthorID: "a", StartedAt: 1})
	require.NoError(t, err)
	assert.Nil(t, prev)
	_, err = store.StartPresentation(ctx, "room1", models.Presentation{PresentationID: "p2", AuthorID: "b", StartedAt: 2})
	require.NoError(t, err)

	prev, err = store.StartPresentation(ctx, "room1", models.Presentation{PresentationID: "p3", AuthorID: "a", StartedAt: 3})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "p1", prev.PresentationID)

	list, err := store.ListPresentations(ctx, "room1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p2", list[0].PresentationID)
	assert.Equal(t, "p3", list[1].PresentationID)

	found, err := store.FindPresentationByAuthor(ctx, "room1", "a")
	require.NoError(t, err)
	assert.Equal(t, "p3", found.PresentationID)
}

func TestSessionStore_UpdatePresentation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	_, err := store.StartPresentation(ctx, "room1", models.Presentation{PresentationID: "p1", AuthorID: "a", CurrentPage: 1})
	require.NoError(t, err)

	updated, err := store.UpdatePresentation(ctx, "room1", "p1", func(p *models.Presentation) error {
		p.CurrentPage = 7
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, updated.CurrentPage)

	errDenied := errors.New("denied")
	_, err = store.UpdatePresentation(ctx, "room1", "p1", func(p *models.Presentation) error {
		p.CurrentPage = 99
		return errDenied
	})
	assert.ErrorIs(t, err, errDenied)

	got, err := store.GetPresentation(ctx, "room1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, got.CurrentPage)

	_, err = store.UpdatePresentation(ctx, "room1", "missing", func(*models.Presentation) error { return nil })
	assert.ErrorIs(t, err, storage.ErrNotFound)

	deleted, err := store.DeletePresentation(ctx, "room1", "p1")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = store.DeletePresentation(ctx, "room1", "p1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestSessionStore_Blacklist(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	added, err := store.AddBlacklistEntry(ctx, "room1", models.BlacklistEntry{IP: "10.0.0.1", Name: "first", AddedAt: 1})
	require.NoError(t, err)
	assert.True(t, added)
	added, err = store.AddBlacklistEntry(ctx, "room1", models.BlacklistEntry{IP: "10.0.0.1", Name: "second", AddedAt: 2})
	require.NoError(t, err)
	assert.False(t, added)

	list, err := store.ListBlacklist(ctx, "room1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Name)

	blocked, err := store.IsBlacklisted(ctx, "room1", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, blocked)

	removed, err := store.RemoveBlacklistEntry(ctx, "room1", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, removed)
	blocked, err = store.IsBlacklisted(ctx, "room1", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestSessionStore_Analytics(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAnalyticsEvent(ctx, "room1", models.AnalyticsEvent{Type: models.AnalyticsJoin, UserID: "u1", Timestamp: 10}))
	require.NoError(t, store.AppendAnalyticsEvent(ctx, "room1", models.AnalyticsEvent{Type: models.AnalyticsLeave, UserID: "u1", Timestamp: 20}))
	require.NoError(t, store.SetActive(ctx, "room1", "u2", 15))
	require.NoError(t, store.SetActive(ctx, "room1", "u2", 30))

	events, err := store.AnalyticsEvents(ctx, "room1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.AnalyticsJoin, events[0].Type)
	assert.Equal(t, models.AnalyticsLeave, events[1].Type)

	active, err := store.ActiveParticipants(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"u2": 15}, active)

	taken, takenActive, err := store.TakeAnalytics(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, events, taken)
	assert.Equal(t, active, takenActive)

	events, err = store.AnalyticsEvents(ctx, "room1")
	require.NoError(t, err)
	assert.Empty(t, events)
	taken, takenActive, err = store.TakeAnalytics(ctx, "room1")
	require.NoError(t, err)
	assert.Empty(t, taken)
	assert.Empty(t, takenActive)
}

func TestSessionStore_RestoreAnalyticsKeepsNewerEntries(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAnalyticsEvent(ctx, "room1", models.AnalyticsEvent{Type: models.AnalyticsJoin, UserID: "u1", Timestamp: 10}))
	require.NoError(t, store.AppendAnalyticsEvent(ctx, "room1", models.AnalyticsEvent{Type: models.AnalyticsLeave, UserID: "u1", Timestamp: 20}))
	require.NoError(t, store.SetActive(ctx, "room1", "u2", 15))
	taken, active, err := store.TakeAnalytics(ctx, "room1")
	require.NoError(t, err)

	require.NoError(t, store.AppendAnalyticsEvent(ctx, "room1", models.AnalyticsEvent{Type: models.AnalyticsJoin, UserID: "u3", Timestamp: 30}))
	require.NoError(t, store.SetActive(ctx, "room1", "u2", 40))
	require.NoError(t, store.RestoreAnalytics(ctx, "room1", taken, active))

	events, err := store.AnalyticsEvents(ctx, "room1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []int64{10, 20, 30}, []int64{events[0].Timestamp, events[1].Timestamp, events[2].Timestamp})

	got, err := store.ActiveParticipants(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"u2": 40}, got)
}

func TestSessionStore_RecordingCorrelation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRecording(ctx, models.RecordingSession{EgressID: "EG_1", RoomID: "room1", UserID: "u1", StartedAt: 42}))
	rs, err := store.GetRecordingByUser(ctx, "room1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "EG_1", rs.EgressID)
	assert.Equal(t, int64(42), rs.StartedAt)

	require.NoError(t, store.SaveRecording(ctx, models.RecordingSession{EgressID: "EG_2", RoomID: "room1", UserID: "u1"}))
	// Releasing the stale egress keeps the newer index entry.
	require.NoError(t, store.ReleaseRecordingUser(ctx, "room1", "u1", "EG_1"))
	rs, err = store.GetRecordingByUser(ctx, "room1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "EG_2", rs.EgressID)

	require.NoError(t, store.ReleaseRecordingUser(ctx, "room1", "u1", "EG_2"))
	_, err = store.GetRecordingByUser(ctx, "room1", "u1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.DeleteRecording(ctx, "EG_1"))
	_, err = store.GetRecording(ctx, "EG_1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessionStore_CheckRateLimit(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limited, err := store.CheckRateLimit(ctx, "chat:u1", 3, time.Second)
		require.NoError(t, err)
		assert.False(t, limited)
	}
	limited, err := store.CheckRateLimit(ctx, "chat:u1", 3, time.Second)
	require.NoError(t, err)
	assert.True(t, limited)

	mr.FastForward(2 * time.Second)
	limited, err = store.CheckRateLimit(ctx, "chat:u1", 3, time.Second)
	require.NoError(t, err)
	assert.False(t, limited)
}
