// Package media is the boundary to the external media server: room creation,
// participant credentials, forced removal and server-side recording.
package media

import (
	"context"
	"errors"
	"net/http"
	"time"

	"meethub/backend/internal/models"
)

// ErrUnauthenticated is returned for webhook requests that fail signature verification.
var ErrUnauthenticated = errors.New("media: webhook signature verification failed")

// TokenRequest describes an access credential for one participant.
type TokenRequest struct {
	Room     string
	Identity string
	Name     string
	IsGuest  bool
	Role     models.Role
}

// Server is the media-server collaborator.
type Server interface {
	CreateRoom(ctx context.Context, room string) error
	IssueToken(req TokenRequest) (string, error)
	RemoveParticipant(ctx context.Context, room, identity string) error
	// StartRecording begins a composite recording of the room and returns its egress id.
	StartRecording(ctx context.Context, room, layout string) (string, error)
	StopRecording(ctx context.Context, egressID string) error
}

// FileResult describes the output file of a finished recording.
type FileResult struct {
	Filename string
	Location string
	Size     int64
	Duration time.Duration
}

// EgressNotification is a verified recording status callback.
type EgressNotification struct {
	Event     string
	EgressID  string
	RoomName  string
	Completed bool
	Files     []FileResult
}

// WebhookReceiver verifies and decodes recording callbacks.
type WebhookReceiver interface {
	Receive(r *http.Request) (*EgressNotification, error)
}
