package waitingroom

import "errors"

var (
	// ErrInvalidTransition is returned when a guest state change is not allowed.
	ErrInvalidTransition = errors.New("waitingroom: invalid guest state transition")
	// ErrMissingGuestID is returned for a join request without a guest identity.
	ErrMissingGuestID = errors.New("waitingroom: guest id is required")
	// ErrCredentialIssuance wraps a media server failure to issue the guest's access token.
	ErrCredentialIssuance = errors.New("waitingroom: credential issuance failed")
)
