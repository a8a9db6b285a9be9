package models

import "time"

// Role is a participant's role within a room.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleAdmin       Role = "admin"
	RoleParticipant Role = "participant"
	// RoleGuest is only used on media access credentials for admitted guests.
	RoleGuest Role = "guest"
)

// IsHost reports whether the role is authorized for moderation actions.
func (r Role) IsHost() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Permission names a cell column of the permission matrix.
type Permission string

const (
	PermissionShareScreen       Permission = "canShareScreen"
	PermissionStartPresentation Permission = "canStartPresentation"
)

// Permissions lists every known permission in a stable order.
var Permissions = []Permission{PermissionShareScreen, PermissionStartPresentation}

// Roles lists the roles that carry a permission row, in a stable order.
var Roles = []Role{RoleOwner, RoleAdmin, RoleParticipant}

// RolePermissions is one row of the permission matrix.
type RolePermissions struct {
	CanShareScreen       bool `json:"canShareScreen"`
	CanStartPresentation bool `json:"canStartPresentation"`
}

// Get returns the value of a single permission.
func (p RolePermissions) Get(perm Permission) bool {
	switch perm {
	case PermissionShareScreen:
		return p.CanShareScreen
	case PermissionStartPresentation:
		return p.CanStartPresentation
	}
	return false
}

// Set overwrites a single permission.
func (p *RolePermissions) Set(perm Permission, value bool) {
	switch perm {
	case PermissionShareScreen:
		p.CanShareScreen = value
	case PermissionStartPresentation:
		p.CanStartPresentation = value
	}
}

// PermissionMatrix maps every role to its permissions.
type PermissionMatrix map[Role]RolePermissions

// WaitingGuest is a guest queued in a room's waiting room.
type WaitingGuest struct {
	GuestID     string `json:"guestId"`
	Name        string `json:"name"`
	RequestedAt int64  `json:"requestedAt"`
}

// PresentationMode controls whether the presenter's camera is shown next to the document.
type PresentationMode string

const (
	ModePresentationWithCamera PresentationMode = "presentationWithCamera"
	ModePresentationOnly       PresentationMode = "presentationOnly"
)

// Valid reports whether m is a known mode.
func (m PresentationMode) Valid() bool {
	return m == ModePresentationWithCamera || m == ModePresentationOnly
}

// Scroll is the scroll offset of a presentation.
type Scroll struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Presentation is a shared document walkthrough owned by its author.
type Presentation struct {
	PresentationID string           `json:"presentationId"`
	FileID         string           `json:"fileId"`
	AuthorID       string           `json:"authorId"`
	URL            string           `json:"url"`
	CurrentPage    int              `json:"currentPage"`
	Zoom           float64          `json:"zoom"`
	Scroll         Scroll           `json:"scroll"`
	Mode           PresentationMode `json:"mode"`
	StartedAt      int64            `json:"startedAt"`
}

// BlacklistEntry blocks an IP (and optionally a user) from a room.
type BlacklistEntry struct {
	IP      string `json:"ip"`
	UserID  string `json:"userId,omitempty"`
	Name    string `json:"name"`
	AddedAt int64  `json:"addedAt"`
}

// AnalyticsEventType is either join or leave.
type AnalyticsEventType string

const (
	AnalyticsJoin  AnalyticsEventType = "join"
	AnalyticsLeave AnalyticsEventType = "leave"
)

// AnalyticsEvent is an append-only entry of a room's attendance log.
type AnalyticsEvent struct {
	Type      AnalyticsEventType `json:"type"`
	UserID    string             `json:"userId"`
	Name      string             `json:"name,omitempty"`
	IP        string             `json:"ip,omitempty"`
	Timestamp int64              `json:"ts"`
}

// Time returns the event timestamp.
func (e AnalyticsEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// RecordingSession correlates a media-server egress with the room and user that started it.
type RecordingSession struct {
	EgressID  string `json:"egressId"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	StartedAt int64  `json:"startedAt"`
}
