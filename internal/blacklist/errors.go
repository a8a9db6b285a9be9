package blacklist

import "errors"

var (
	ErrMissingIP = errors.New("blacklist: ip is required")
	// ErrForcedRemovalFailed is returned when the entry was stored but the media
	// server could not remove the participant.
	ErrForcedRemovalFailed = errors.New("blacklist: forced removal from media room failed")
)
