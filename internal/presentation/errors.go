package presentation

import (
	"errors"
	"fmt"
)

var (
	ErrPresentationNotFound = errors.New("presentation: not found")
	ErrInvalidTransition    = errors.New("presentation: invalid state transition")
	ErrInvalidValue         = errors.New("presentation: invalid value")
	ErrMissingURL           = errors.New("presentation: url is required")
)

// AuthorizationError is returned when someone other than the author tries to
// change a presentation.
type AuthorizationError struct {
	PresentationID string
	UserID         string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("presentation: user %s is not the author of %s", e.UserID, e.PresentationID)
}
