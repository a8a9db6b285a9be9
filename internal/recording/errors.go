package recording

import "errors"

var (
	// ErrUnknownRoom is returned when a completion cannot be attributed to any room.
	ErrUnknownRoom = errors.New("recording: completion for unknown room")
	// ErrRecordingNotFound is returned when an egress is not recording in the given room.
	ErrRecordingNotFound = errors.New("recording: no such recording in room")
)
