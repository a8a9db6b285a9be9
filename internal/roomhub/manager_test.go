package roomhub_test

import (
	"context"
	"testing"

	"meethub/backend/internal/media"
	"meethub/backend/internal/models"
	"meethub/backend/internal/roomhub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestManager_GuestAdmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, ownerOut := f.join(t, testOwner, "10.0.0.1", false)
	guest, guestOut := f.join(t, "guest-1", "10.0.0.9", true)

	f.send(t, guest, models.EventGuestJoinRequest, models.GuestJoinRequestPayload{Name: "Ann"})

	var queue []models.WaitingGuest
	require.True(t, ownerOut.last(t, models.EventWaitingQueueUpdated, &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, "guest-1", queue[0].GuestID)
	assert.Equal(t, "Ann", queue[0].Name)

	f.media.On("IssueToken", mock.MatchedBy(func(req media.TokenRequest) bool {
		return req.Identity == "guest-1" && req.IsGuest && req.Room == testRoom
	})).Return("media-token", nil).Once()

	f.send(t, owner, models.EventHostApproval, models.HostApprovalPayload{GuestID: "guest-1", Approved: true})

	var approved models.GuestApprovedPayload
	require.True(t, guestOut.last(t, models.EventGuestApproved, &approved))
	assert.Equal(t, "media-token", approved.Token)
	assert.False(t, guest.IsGuest())

	role, err := f.hub.Roles.RoleOf(ctx, testRoom, "guest-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleParticipant, role)

	var updated models.RoleUpdatedPayload
	require.True(t, ownerOut.last(t, models.EventRoleUpdated, &updated))
	assert.Equal(t, "guest-1", updated.UserID)
	require.True(t, ownerOut.last(t, models.EventWaitingQueueUpdated, &queue))
	assert.Empty(t, queue)

	// A second decision for the same guest is a no-op.
	ownerOut.reset()
	f.send(t, owner, models.EventHostApproval, models.HostApprovalPayload{GuestID: "guest-1", Approved: true})
	assert.Empty(t, ownerOut.events())
	f.media.AssertNumberOfCalls(t, "IssueToken", 1)
}

func TestManager_GuestRejected(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.join(t, testOwner, "10.0.0.1", false)
	guest, guestOut := f.join(t, "guest-1", "10.0.0.9", true)

	f.send(t, guest, models.EventGuestJoinRequest, nil)
	f.send(t, owner, models.EventHostApproval, models.HostApprovalPayload{GuestID: "guest-1", Approved: false})

	var rejected models.GuestRejectedPayload
	require.True(t, guestOut.last(t, models.EventGuestRejected, &rejected))
	assert.Equal(t, "rejected", rejected.Reason)
	assert.True(t, guest.IsGuest())
	f.media.AssertNotCalled(t, "IssueToken", mock.Anything)
}

func TestManager_GuestWithoutWaitingRoomIsAdmittedImmediately(t *testing.T) {
	f := newFixture(t)
	f.rooms.rooms[testRoom].WaitingRoomEnabled = false
	f.join(t, testOwner, "10.0.0.1", false)
	guest, guestOut := f.join(t, "guest-1", "10.0.0.9", true)
	f.media.On("IssueToken", mock.Anything).Return("tok", nil)

	f.send(t, guest, models.EventGuestJoinRequest, nil)

	assert.Contains(t, guestOut.events(), models.EventGuestApproved)
	assert.False(t, guest.IsGuest())
}

func TestManager_BlockedGuestIsRejected(t *testing.T) {
	f := newFixture(t)
	f.join(t, testOwner, "10.0.0.1", false)
	_, _, err := f.hub.Blacklist.Add(context.Background(), testRoom, "10.0.0.9", "spammer", "")
	require.NoError(t, err)

	guest, guestOut := f.join(t, "guest-1", "10.0.0.9", true)
	f.send(t, guest, models.EventGuestJoinRequest, nil)

	var rejected models.GuestRejectedPayload
	require.True(t, guestOut.last(t, models.EventGuestRejected, &rejected))
	assert.Equal(t, "blocked", rejected.Reason)
	queue, err := f.hub.Waiting.Queue(context.Background(), testRoom)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestManager_GuestCannotSendOtherEvents(t *testing.T) {
	f := newFixture(t)
	guest, guestOut := f.join(t, "guest-1", "10.0.0.9", true)

	f.send(t, guest, models.EventReady, nil)
	f.send(t, guest, models.EventNewMessage, models.NewMessagePayload{Message: "hi"})

	assert.Equal(t, []string{roomhub.CodeNotAdmitted, roomhub.CodeNotAdmitted}, errorCodes(t, guestOut))
}

func TestManager_HostOnlyEventsRejectParticipants(t *testing.T) {
	f := newFixture(t)
	f.join(t, testOwner, "10.0.0.1", false)
	p1, p1Out := f.join(t, "p1", "10.0.0.2", false)

	f.send(t, p1, models.EventHostApproval, models.HostApprovalPayload{GuestID: "x", Approved: true})
	f.send(t, p1, models.EventUpdateRole, models.UpdateRolePayload{TargetUserID: "p1", NewRole: models.RoleAdmin})
	f.send(t, p1, models.EventRecordingStarted, nil)

	assert.Equal(t, []string{roomhub.CodeNotHost, roomhub.CodeNotHost, roomhub.CodeNotHost}, errorCodes(t, p1Out))
	f.media.AssertNotCalled(t, "StartRecording", mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_MalformedAndUnknownEvents(t *testing.T) {
	f := newFixture(t)
	owner, ownerOut := f.join(t, testOwner, "10.0.0.1", false)

	f.hub.HandleMessage(context.Background(), owner.Handle, []byte("{not json"))
	f.hub.HandleMessage(context.Background(), owner.Handle, []byte(`{"event":"host_approval","data":"oops"}`))
	f.send(t, owner, "teleport", nil)

	assert.Equal(t, []string{roomhub.CodeInvalidPayload, roomhub.CodeInvalidPayload, roomhub.CodeUnknownEvent}, errorCodes(t, ownerOut))
}

func TestManager_ReadySendsInitialState(t *testing.T) {
	f := newFixture(t)
	owner, ownerOut := f.join(t, testOwner, "10.0.0.1", false)
	p1, p1Out := f.join(t, "p1", "10.0.0.2", false)

	f.send(t, owner, models.EventReady, nil)
	f.send(t, p1, models.EventReady, nil)

	assert.Equal(t, []string{
		models.EventPermissionsInit,
		models.EventRolesUpdated,
		models.EventPresentationsState,
		models.EventBlacklistInit,
		models.EventWaitingQueueUpdated,
	}, ownerOut.events())
	assert.Equal(t, []string{
		models.EventPermissionsInit,
		models.EventRolesUpdated,
		models.EventPresentationsState,
	}, p1Out.events())

	var matrix models.PermissionMatrix
	require.True(t, p1Out.last(t, models.EventPermissionsInit, &matrix))
	assert.True(t, matrix[models.RoleParticipant].CanStartPresentation)

	var roleMap map[string]models.Role
	require.True(t, p1Out.last(t, models.EventRolesUpdated, &roleMap))
	assert.Equal(t, models.RoleOwner, roleMap[testOwner])
	assert.Equal(t, models.RoleParticipant, roleMap["p1"])
}

func TestManager_ReadySendsHistoryWhenEnabled(t *testing.T) {
	f := newFixture(t)
	f.rooms.rooms[testRoom].ShowHistoryToNewbies = true
	owner, _ := f.join(t, testOwner, "10.0.0.1", false)
	f.send(t, owner, models.EventNewMessage, models.NewMessagePayload{Message: "earlier"})

	p1, p1Out := f.join(t, "p1", "10.0.0.2", false)
	f.send(t, p1, models.EventReady, nil)

	var history []models.ChatMessage
	require.True(t, p1Out.last(t, models.EventPreviousMessages, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "earlier", history[0].Message)
	assert.Equal(t, testOwner, history[0].SenderID)
}

func TestManager_UpdatePermission(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.join(t, testOwner, "10.0.0.1", false)
	p1, p1Out := f.join(t, "p1", "10.0.0.2", false)

	f.send(t, owner, models.EventUpdatePermission, models.UpdatePermissionPayload{
		TargetRole: models.RoleParticipant,
		Permission: models.PermissionStartPresentation,
		Value:      false,
	})

	var updated models.PermissionsUpdatedPayload
	require.True(t, p1Out.last(t, models.EventPermissionsUpdated, &updated))
	assert.Equal(t, models.RoleParticipant, updated.Role)
	assert.False(t, updated.Permissions.CanStartPresentation)
	assert.True(t, updated.Permissions.CanShareScreen)

	p1Out.reset()
	f.send(t, p1, models.EventPresentationStarted, models.PresentationStartedPayload{FileID: "f1", URL: "https://files/doc.pdf"})
	assert.Equal(t, []string{roomhub.CodePermissionDenied}, errorCodes(t, p1Out))
}

func TestManager_UpdateRole(t *testing.T) {
	f := newFixture(t)
	owner, ownerOut := f.join(t, testOwner, "10.0.0.1", false)
	_, p1Out := f.join(t, "p1", "10.0.0.2", false)

	f.send(t, owner, models.EventUpdateRole, models.UpdateRolePayload{TargetUserID: "p1", NewRole: models.RoleAdmin})

	var updated models.RoleUpdatedPayload
	require.True(t, p1Out.last(t, models.EventRoleUpdated, &updated))
	assert.Equal(t, models.RoleAdmin, updated.Role)
	assert.Contains(t, p1Out.events(), models.EventBlacklistInit)
	assert.Contains(t, p1Out.events(), models.EventWaitingQueueUpdated)

	f.send(t, owner, models.EventUpdateRole, models.UpdateRolePayload{TargetUserID: "p1", NewRole: models.RoleOwner})
	f.send(t, owner, models.EventUpdateRole, models.UpdateRolePayload{TargetUserID: testOwner, NewRole: models.RoleParticipant})
	assert.Equal(t, []string{roomhub.CodeInvalidRole, roomhub.CodeOwnerImmutable}, errorCodes(t, ownerOut))
}

func TestManager_PresentationLifecycle(t *testing.T) {
	f := newFixture(t)
	_, ownerOut := f.join(t, testOwner, "10.0.0.1", false)
	p1, _ := f.join(t, "p1", "10.0.0.2", false)
	p2, p2Out := f.join(t, "p2", "10.0.0.3", false)

	f.send(t, p1, models.EventPresentationStarted, models.PresentationStartedPayload{FileID: "f1", URL: "https://files/one.pdf"})
	var first models.Presentation
	require.True(t, ownerOut.last(t, models.EventPresentationStarted, &first))
	assert.Equal(t, "p1", first.AuthorID)
	assert.Equal(t, 1, first.CurrentPage)

	// Starting another one finishes the first before announcing the second.
	ownerOut.reset()
	f.send(t, p1, models.EventPresentationStarted, models.PresentationStartedPayload{FileID: "f2", URL: "https://files/two.pdf"})
	assert.Equal(t, []string{models.EventPresentationFinished, models.EventPresentationStarted}, ownerOut.events())
	var finished models.PresentationFinishedPayload
	require.True(t, ownerOut.last(t, models.EventPresentationFinished, &finished))
	assert.Equal(t, first.PresentationID, finished.PresentationID)
	var second models.Presentation
	require.True(t, ownerOut.last(t, models.EventPresentationStarted, &second))

	// Only the author may change it.
	ownerOut.reset()
	f.send(t, p2, models.EventPresentationPageChanged, models.PresentationPagePayload{PresentationID: second.PresentationID, Page: 4})
	assert.Empty(t, ownerOut.events())
	assert.Equal(t, []string{roomhub.CodeNotAuthor}, errorCodes(t, p2Out))

	f.send(t, p1, models.EventPresentationPageChanged, models.PresentationPagePayload{PresentationID: second.PresentationID, Page: 4})
	var page models.PresentationPagePayload
	require.True(t, ownerOut.last(t, models.EventPresentationPageChanged, &page))
	assert.Equal(t, 4, page.Page)

	f.send(t, p1, models.EventPresentationZoomChanged, models.PresentationZoomPayload{PresentationID: second.PresentationID, Zoom: -1})
	assert.NotContains(t, ownerOut.events(), models.EventPresentationZoomChanged)

	// A participant cannot finish someone else's presentation.
	ownerOut.reset()
	f.send(t, p2, models.EventPresentationFinished, models.PresentationFinishedPayload{PresentationID: second.PresentationID})
	assert.Empty(t, ownerOut.events())

	f.send(t, p1, models.EventPresentationFinished, models.PresentationFinishedPayload{PresentationID: second.PresentationID})
	assert.Equal(t, []string{models.EventPresentationFinished}, ownerOut.events())

	// Mutating a finished presentation is silently ignored.
	p2Out.reset()
	f.send(t, p1, models.EventPresentationPageChanged, models.PresentationPagePayload{PresentationID: second.PresentationID, Page: 2})
	assert.Equal(t, []string{models.EventPresentationFinished}, ownerOut.events())
	assert.Empty(t, p2Out.events())
}

func TestManager_HostCanFinishAnyPresentation(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.join(t, testOwner, "10.0.0.1", false)
	p1, p1Out := f.join(t, "p1", "10.0.0.2", false)

	f.send(t, p1, models.EventPresentationStarted, models.PresentationStartedPayload{FileID: "f1", URL: "https://files/one.pdf"})
	var started models.Presentation
	require.True(t, p1Out.last(t, models.EventPresentationStarted, &started))

	f.send(t, owner, models.EventPresentationFinished, models.PresentationFinishedPayload{PresentationID: started.PresentationID})
	assert.Contains(t, p1Out.events(), models.EventPresentationFinished)

	list, err := f.hub.Presentations.List(context.Background(), testRoom)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManager_Recording(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.join(t, testOwner, "10.0.0.1", false)
	_, p1Out := f.join(t, "p1", "10.0.0.2", false)

	f.media.On("StartRecording", mock.Anything, testRoom, "grid").Return("EG_1", nil).Once()
	f.send(t, owner, models.EventRecordingStarted, nil)

	var started models.RecordingStartedPayload
	require.True(t, p1Out.last(t, models.EventRecordingStarted, &started))
	assert.Equal(t, "EG_1", started.EgressID)

	f.media.On("StopRecording", mock.Anything, "EG_1").Return(nil).Once()
	f.send(t, owner, models.EventRecordingFinished, models.RecordingFinishedPayload{EgressID: "EG_1"})
	assert.Contains(t, p1Out.events(), models.EventRecordingFinished)
	f.media.AssertExpectations(t)
}

func TestManager_RecordingStopIsScopedToRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.rooms.rooms["room-b"] = &models.Room{ShortID: "room-b", OwnerID: "owner-b"}
	owner, ownerOut := f.join(t, testOwner, "10.0.0.1", false)
	_, p1Out := f.join(t, "p1", "10.0.0.2", false)

	f.media.On("StartRecording", mock.Anything, "room-b", "grid").Return("EG_B", nil).Once()
	_, err := f.hub.Recordings.Start(ctx, "room-b", "owner-b")
	require.NoError(t, err)

	f.send(t, owner, models.EventRecordingFinished, models.RecordingFinishedPayload{EgressID: "EG_B"})

	f.media.AssertNotCalled(t, "StopRecording", mock.Anything, "EG_B")
	assert.NotContains(t, p1Out.events(), models.EventRecordingFinished)
	assert.Empty(t, errorCodes(t, ownerOut))
}

func TestManager_GuestCredentialFailureReportsMediaUnavailable(t *testing.T) {
	f := newFixture(t)
	owner, ownerOut := f.join(t, testOwner, "10.0.0.1", false)
	guest, _ := f.join(t, "guest-1", "10.0.0.9", true)
	f.media.On("IssueToken", mock.Anything).Return("", assert.AnError)

	f.send(t, guest, models.EventGuestJoinRequest, nil)
	f.send(t, owner, models.EventHostApproval, models.HostApprovalPayload{GuestID: "guest-1", Approved: true})

	assert.Equal(t, []string{roomhub.CodeMediaUnavailable}, errorCodes(t, ownerOut))
	assert.True(t, guest.IsGuest())
}

func TestManager_OwnerConnectCreatesMediaRoom(t *testing.T) {
	f := newFixture(t)
	f.join(t, "p1", "10.0.0.2", false)
	f.media.AssertNotCalled(t, "CreateRoom", mock.Anything, mock.Anything)

	f.join(t, testOwner, "10.0.0.1", false)
	f.media.AssertCalled(t, "CreateRoom", mock.Anything, testRoom)
	f.media.AssertNumberOfCalls(t, "CreateRoom", 1)
}

func TestManager_RecordingFailureReportedToCaller(t *testing.T) {
	f := newFixture(t)
	owner, ownerOut := f.join(t, testOwner, "10.0.0.1", false)
	_, p1Out := f.join(t, "p1", "10.0.0.2", false)

	f.media.On("StartRecording", mock.Anything, testRoom, "grid").Return("", assert.AnError)
	f.send(t, owner, models.EventRecordingStarted, nil)

	assert.Equal(t, []string{roomhub.CodeMediaUnavailable}, errorCodes(t, ownerOut))
	assert.Empty(t, p1Out.events())
}

func TestManager_DisconnectReleasesOwnedState(t *testing.T) {
	f := newFixture(t)
	owner, _ := f.join(t, testOwner, "10.0.0.1", false)
	p1, p1Out := f.join(t, "p1", "10.0.0.2", false)

	f.media.On("StartRecording", mock.Anything, testRoom, "grid").Return("EG_1", nil)
	f.send(t, owner, models.EventRecordingStarted, nil)
	f.send(t, owner, models.EventPresentationStarted, models.PresentationStartedPayload{FileID: "f1", URL: "https://files/one.pdf"})

	f.media.On("StopRecording", mock.Anything, "EG_1").Return(nil).Once()
	p1Out.reset()
	f.hub.Disconnect(owner.Handle)

	assert.ElementsMatch(t, []string{models.EventPresentationFinished, models.EventRecordingFinished}, p1Out.events())
	f.media.AssertExpectations(t)
	f.sink.AssertNotCalled(t, "PersistAttendance", mock.Anything, mock.Anything, mock.Anything)

	// The last connection leaving flushes attendance.
	f.sink.On("PersistAttendance", mock.Anything, testRoom, mock.MatchedBy(func(s []models.AnalyticsSession) bool {
		return len(s) == 1 && len(s[0].Participants) == 2 && s[0].EndTime != nil
	})).Return(nil).Once()
	f.hub.Disconnect(p1.Handle)
	f.sink.AssertExpectations(t)

	// Disconnect is idempotent.
	f.hub.Disconnect(p1.Handle)
	f.sink.AssertNumberOfCalls(t, "PersistAttendance", 1)
}

func TestManager_SecondTabKeepsOwnedState(t *testing.T) {
	f := newFixture(t)
	_, ownerOut := f.join(t, testOwner, "10.0.0.1", false)
	tab1, _ := f.join(t, "p1", "10.0.0.2", false)
	f.join(t, "p1", "10.0.0.2", false)

	f.send(t, tab1, models.EventPresentationStarted, models.PresentationStartedPayload{FileID: "f1", URL: "https://files/one.pdf"})
	ownerOut.reset()
	f.hub.Disconnect(tab1.Handle)

	assert.Empty(t, ownerOut.events())
	list, err := f.hub.Presentations.List(context.Background(), testRoom)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestManager_GuestDisconnectLeavesQueue(t *testing.T) {
	f := newFixture(t)
	_, ownerOut := f.join(t, testOwner, "10.0.0.1", false)
	guest, _ := f.join(t, "guest-1", "10.0.0.9", true)
	f.send(t, guest, models.EventGuestJoinRequest, nil)

	f.hub.Disconnect(guest.Handle)

	var queue []models.WaitingGuest
	require.True(t, ownerOut.last(t, models.EventWaitingQueueUpdated, &queue))
	assert.Empty(t, queue)
}

func TestManager_Blacklist(t *testing.T) {
	f := newFixture(t)
	owner, ownerOut := f.join(t, testOwner, "10.0.0.1", false)
	_, p1Out := f.join(t, "p1", "10.0.0.2", false)
	_, p2Out := f.join(t, "p2", "10.0.0.3", false)

	f.media.On("RemoveParticipant", mock.Anything, testRoom, "p1").Return(nil).Once()
	f.send(t, owner, models.EventAddToBlacklist, models.AddToBlacklistPayload{UserID: "p1"})

	var entries []models.BlacklistEntry
	require.True(t, ownerOut.last(t, models.EventBlacklistUpdated, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "10.0.0.2", entries[0].IP)
	assert.Equal(t, "name-p1", entries[0].Name)
	assert.True(t, p1Out.closed)
	assert.Equal(t, roomhub.ReasonBlacklisted, p1Out.reason)
	assert.False(t, p2Out.closed)
	assert.NotContains(t, p2Out.events(), models.EventBlacklistUpdated)
	f.media.AssertExpectations(t)

	// Blocking again does not repeat the removal.
	f.send(t, owner, models.EventAddToBlacklist, models.AddToBlacklistPayload{UserID: "p1"})
	f.media.AssertNumberOfCalls(t, "RemoveParticipant", 1)

	f.send(t, owner, models.EventAddToBlacklist, models.AddToBlacklistPayload{UserID: testOwner})
	f.send(t, owner, models.EventAddToBlacklist, models.AddToBlacklistPayload{UserID: "ghost"})
	assert.Equal(t, []string{roomhub.CodeOwnerImmutable, roomhub.CodeUserNotConnected}, errorCodes(t, ownerOut))

	f.send(t, owner, models.EventRemoveFromBlacklist, models.RemoveFromBlacklistPayload{IP: "10.0.0.2"})
	require.True(t, ownerOut.last(t, models.EventBlacklistUpdated, &entries))
	assert.Empty(t, entries)
}

func TestManager_BlacklistSparesCallerAndOwnerOnSharedAddress(t *testing.T) {
	f := newFixture(t)
	owner, ownerOut := f.join(t, testOwner, "10.0.0.7", false)
	admin, adminOut := f.join(t, "a1", "10.0.0.7", false)
	_, p1Out := f.join(t, "p1", "10.0.0.7", false)
	_, p2Out := f.join(t, "p2", "10.0.0.7", false)

	f.send(t, owner, models.EventUpdateRole, models.UpdateRolePayload{TargetUserID: "a1", NewRole: models.RoleAdmin})
	f.media.On("RemoveParticipant", mock.Anything, testRoom, "p1").Return(nil).Once()
	f.send(t, admin, models.EventAddToBlacklist, models.AddToBlacklistPayload{UserID: "p1"})

	assert.True(t, p1Out.closed)
	assert.True(t, p2Out.closed)
	assert.False(t, adminOut.closed)
	assert.False(t, ownerOut.closed)
	assert.Empty(t, errorCodes(t, adminOut))
}

func TestManager_Chat(t *testing.T) {
	f := newFixture(t)
	_, ownerOut := f.join(t, testOwner, "10.0.0.1", false)
	p1, p1Out := f.join(t, "p1", "10.0.0.2", false)

	f.send(t, p1, models.EventNewMessage, models.NewMessagePayload{Message: "  hello  "})
	var msg models.ChatMessage
	require.True(t, ownerOut.last(t, models.EventNewMessage, &msg))
	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, "p1", msg.SenderID)
	assert.Equal(t, "name-p1", msg.SenderName)

	f.send(t, p1, models.EventNewMessage, models.NewMessagePayload{Message: "   "})
	f.send(t, p1, models.EventNewMessage, models.NewMessagePayload{Message: "two"})
	f.send(t, p1, models.EventNewMessage, models.NewMessagePayload{Message: "three"})

	assert.Equal(t, []string{roomhub.CodeRateLimited}, errorCodes(t, p1Out))
	assert.Len(t, f.rooms.messages, 2)
}

func TestManager_ErrorsAreLocalized(t *testing.T) {
	f := newFixture(t)
	guest, guestOut := f.join(t, "guest-1", "10.0.0.9", true)
	guest.Lang = "uk"

	f.send(t, guest, models.EventReady, nil)

	var p models.ErrorPayload
	require.True(t, guestOut.last(t, models.EventError, &p))
	assert.Equal(t, roomhub.CodeNotAdmitted, p.Code)
	assert.Equal(t, f.hub.Localizer.GetString("uk", roomhub.CodeNotAdmitted), p.Message)
	assert.NotEqual(t, f.hub.Localizer.GetString("en", roomhub.CodeNotAdmitted), p.Message)
}
