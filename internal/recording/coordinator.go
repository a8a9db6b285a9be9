// Package recording starts and stops server-side recordings and reconciles their
// asynchronous completion with a durable file record.
package recording

import (
	"context"
	"errors"
	"path"
	"time"

	"meethub/backend/internal/media"
	"meethub/backend/internal/models"
	"meethub/backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// Store is the recording-correlation part of the session store.
type Store interface {
	SaveRecording(ctx context.Context, rs models.RecordingSession) error
	GetRecording(ctx context.Context, egressID string) (*models.RecordingSession, error)
	GetRecordingByUser(ctx context.Context, roomID, userID string) (*models.RecordingSession, error)
	ReleaseRecordingUser(ctx context.Context, roomID, userID, egressID string) error
	DeleteRecording(ctx context.Context, egressID string) error
}

// Recorder is the recording part of the media server.
type Recorder interface {
	StartRecording(ctx context.Context, room, layout string) (string, error)
	StopRecording(ctx context.Context, egressID string) error
}

// FileStore is the durable side used on completion.
type FileStore interface {
	GetRoomByShortID(ctx context.Context, shortID string) (*models.Room, error)
	SaveRecordingFile(ctx context.Context, file *models.File) (bool, error)
}

type Coordinator struct {
	store  Store
	media  Recorder
	files  FileStore
	layout string
	now    func() time.Time
}

func NewCoordinator(store Store, recorder Recorder, files FileStore, layout string) *Coordinator {
	return &Coordinator{store: store, media: recorder, files: files, layout: layout, now: time.Now}
}

// Start begins recording the room. The correlation is stored only after the media
// server accepted the request; errors are returned without side effects.
func (c *Coordinator) Start(ctx context.Context, roomID, userID string) (string, error) {
	egressID, err := c.media.StartRecording(ctx, roomID, c.layout)
	if err != nil {
		return "", err
	}
	rs := models.RecordingSession{EgressID: egressID, RoomID: roomID, UserID: userID, StartedAt: c.now().UnixMilli()}
	if err := c.store.SaveRecording(ctx, rs); err != nil {
		// The egress is running without a correlation; completion falls back to the room owner.
		log.Error().Err(err).Str("module", "recording").Str("egress_id", egressID).Msg("failed to store recording correlation")
		return "", err
	}
	return egressID, nil
}

// Stop stops an egress of roomID and releases the initiator's index entry. An egress
// without a correlation in roomID yields ErrRecordingNotFound and the media server is
// not contacted. The correlation itself is kept until the completion arrives.
func (c *Coordinator) Stop(ctx context.Context, roomID, egressID string) error {
	rs, err := c.store.GetRecording(ctx, egressID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrRecordingNotFound
	}
	if err != nil {
		return err
	}
	if rs.RoomID != roomID {
		log.Warn().Str("module", "recording").Str("room_id", roomID).Str("egress_id", egressID).Msg("stop for egress of another room refused")
		return ErrRecordingNotFound
	}
	if err := c.media.StopRecording(ctx, egressID); err != nil {
		return err
	}
	return c.store.ReleaseRecordingUser(ctx, rs.RoomID, rs.UserID, egressID)
}

// StopByUser stops the recording the user started in the room, if any. The stopped
// egress id is returned, or "" when there was nothing to stop.
func (c *Coordinator) StopByUser(ctx context.Context, roomID, userID string) (string, error) {
	rs, err := c.store.GetRecordingByUser(ctx, roomID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if err := c.Stop(ctx, roomID, rs.EgressID); err != nil {
		return "", err
	}
	return rs.EgressID, nil
}

// HandleCompletion reconciles a verified egress notification. Anything but a completed
// egress is ignored. Redelivery is a no-op: the file insert is keyed on the egress id.
// The created file is returned, or nil when nothing was created.
func (c *Coordinator) HandleCompletion(ctx context.Context, n *media.EgressNotification) (*models.File, error) {
	if n == nil || !n.Completed || n.EgressID == "" {
		return nil, nil
	}
	logger := log.With().Str("module", "recording").Str("egress_id", n.EgressID).Logger()

	roomID, ownerID := n.RoomName, ""
	rs, err := c.store.GetRecording(ctx, n.EgressID)
	switch {
	case err == nil:
		roomID, ownerID = rs.RoomID, rs.UserID
	case errors.Is(err, storage.ErrNotFound):
		logger.Warn().Str("room_id", roomID).Msg("no correlation for completed recording, attributing to room owner")
	default:
		return nil, err
	}
	if ownerID == "" {
		room, err := c.files.GetRoomByShortID(ctx, roomID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownRoom
		}
		if err != nil {
			return nil, err
		}
		ownerID = room.OwnerID
	}

	file := &models.File{
		RoomID:   roomID,
		OwnerID:  ownerID,
		EgressID: n.EgressID,
		Name:     n.EgressID + ".mp4",
	}
	if len(n.Files) > 0 {
		f := n.Files[0]
		if f.Filename != "" {
			file.Name = path.Base(f.Filename)
		}
		file.Location = f.Location
		file.Size = f.Size
		file.Duration = int64(f.Duration.Seconds())
	}

	created, err := c.files.SaveRecordingFile(ctx, file)
	if err != nil {
		return nil, err
	}
	if rs != nil {
		if err := c.store.ReleaseRecordingUser(ctx, rs.RoomID, rs.UserID, rs.EgressID); err != nil {
			logger.Warn().Err(err).Msg("failed to release recording index")
		}
	}
	if err := c.store.DeleteRecording(ctx, n.EgressID); err != nil {
		logger.Warn().Err(err).Msg("failed to delete recording correlation")
	}
	if !created {
		logger.Debug().Msg("duplicate completion ignored")
		return nil, nil
	}
	logger.Info().Str("room_id", roomID).Str("file_id", file.ID).Msg("recording file stored")
	return file, nil
}
