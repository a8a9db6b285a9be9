package models

import "encoding/json"

// Envelope is the realtime message format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope for the given event.
func NewEnvelope(event string, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: raw}, nil
}

// Inbound events.
const (
	EventReady                     = "ready"
	EventGuestJoinRequest          = "guest_join_request"
	EventHostApproval              = "host_approval"
	EventUpdatePermission          = "update_permission"
	EventUpdateRole                = "update_role"
	EventPresentationStarted       = "presentation_started"
	EventPresentationPageChanged   = "presentation_page_changed"
	EventPresentationZoomChanged   = "presentation_zoom_changed"
	EventPresentationScrollChanged = "presentation_scroll_changed"
	EventPresentationModeChanged   = "presentation_mode_changed"
	EventPresentationFinished      = "presentation_finished"
	EventRecordingStarted          = "recording_started"
	EventRecordingFinished         = "recording_finished"
	EventAddToBlacklist            = "add_to_blacklist"
	EventRemoveFromBlacklist       = "remove_from_blacklist"
	EventNewMessage                = "new_message"
)

// Outbound events that have no inbound counterpart.
const (
	EventPermissionsInit     = "permissions_init"
	EventPermissionsUpdated  = "permissions_updated"
	EventRolesUpdated        = "roles_updated"
	EventRoleUpdated         = "role_updated"
	EventWaitingQueueUpdated = "waiting_queue_updated"
	EventPresentationsState  = "presentations_state"
	EventBlacklistInit       = "blacklist_init"
	EventBlacklistUpdated    = "blacklist_updated"
	EventGuestApproved       = "guest_approved"
	EventGuestRejected       = "guest_rejected"
	EventPreviousMessages    = "previousMessages"
	EventError               = "error"
)

type GuestJoinRequestPayload struct {
	Name string `json:"name"`
}

type HostApprovalPayload struct {
	GuestID  string `json:"guestId"`
	Approved bool   `json:"approved"`
}

type UpdatePermissionPayload struct {
	TargetRole Role       `json:"targetRole"`
	Permission Permission `json:"permission"`
	Value      bool       `json:"value"`
}

type UpdateRolePayload struct {
	TargetUserID string `json:"targetUserId"`
	NewRole      Role   `json:"newRole"`
}

type PresentationStartedPayload struct {
	FileID string           `json:"fileId"`
	URL    string           `json:"url"`
	Mode   PresentationMode `json:"mode,omitempty"`
}

type PresentationPagePayload struct {
	PresentationID string `json:"presentationId"`
	Page           int    `json:"page"`
}

type PresentationZoomPayload struct {
	PresentationID string  `json:"presentationId"`
	Zoom           float64 `json:"zoom"`
}

// PresentationScrollPayload carries optional coordinates; a missing axis is left unchanged.
type PresentationScrollPayload struct {
	PresentationID string   `json:"presentationId"`
	X              *float64 `json:"x,omitempty"`
	Y              *float64 `json:"y,omitempty"`
}

type PresentationModePayload struct {
	PresentationID string           `json:"presentationId"`
	Mode           PresentationMode `json:"mode"`
}

type PresentationFinishedPayload struct {
	PresentationID string `json:"presentationId"`
}

type RecordingFinishedPayload struct {
	EgressID string `json:"egressId"`
}

type AddToBlacklistPayload struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

type RemoveFromBlacklistPayload struct {
	IP string `json:"ip"`
}

type NewMessagePayload struct {
	Message string `json:"message"`
}

// ErrorPayload is sent to a single connection when one of its commands is refused.
type ErrorPayload struct {
	Event   string `json:"event,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Outbound payloads.

type PermissionsUpdatedPayload struct {
	Role        Role            `json:"role"`
	Permissions RolePermissions `json:"permissions"`
}

type RoleUpdatedPayload struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

type GuestApprovedPayload struct {
	Token string `json:"token"`
}

type GuestRejectedPayload struct {
	Reason string `json:"reason"`
}

type RecordingStartedPayload struct {
	EgressID string `json:"egressId"`
}
