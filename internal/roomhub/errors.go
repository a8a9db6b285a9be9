package roomhub

import (
	"errors"

	"meethub/backend/internal/blacklist"
	"meethub/backend/internal/presentation"
	"meethub/backend/internal/roles"
	"meethub/backend/internal/waitingroom"
)

// Error codes sent to a single connection in an error event. They double as
// localization keys.
const (
	CodeNotAdmitted      = "not_admitted"
	CodeNotHost          = "not_host"
	CodeNotAuthor        = "not_author"
	CodePermissionDenied = "permission_denied"
	CodeRateLimited      = "rate_limited"
	CodeInvalidPayload   = "invalid_payload"
	CodeUnknownEvent     = "unknown_event"
	CodeUserNotConnected = "user_not_connected"
	CodeMediaUnavailable = "media_unavailable"
	CodeInvalidRole      = "invalid_role"
	CodeOwnerImmutable   = "owner_immutable"
	CodeMessageTooLong   = "message_too_long"
	CodeInternal         = "internal_error"
)

// Close reasons.
const (
	ReasonBlacklisted   = "blacklisted"
	ReasonProtocolError = "protocol_error"
)

// errorCode maps a coordinator error to the code reported to the caller.
func errorCode(err error) string {
	var authErr *presentation.AuthorizationError
	switch {
	case errors.As(err, &authErr):
		return CodeNotAuthor
	case errors.Is(err, presentation.ErrInvalidValue),
		errors.Is(err, presentation.ErrMissingURL),
		errors.Is(err, roles.ErrUnknownPermission),
		errors.Is(err, blacklist.ErrMissingIP):
		return CodeInvalidPayload
	case errors.Is(err, roles.ErrUnknownRole), errors.Is(err, roles.ErrRoleNotAssignable):
		return CodeInvalidRole
	case errors.Is(err, roles.ErrOwnerImmutable):
		return CodeOwnerImmutable
	case errors.Is(err, blacklist.ErrForcedRemovalFailed), errors.Is(err, waitingroom.ErrCredentialIssuance):
		return CodeMediaUnavailable
	}
	return CodeInternal
}
