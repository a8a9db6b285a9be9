package models

import "time"

// Permission levels stored on a durable room.
const (
	LevelOwner = "OWNER"
	LevelAdmin = "ADMIN"
	LevelAll   = "ALL"
)

// Room is the durable room configuration owned by the room-management API.
// The coordination layer only reads it.
type Room struct {
	// ID is the internal primary key.
	ID uint `gorm:"primaryKey" json:"-"`
	// ShortID is the public room identifier used in links and as the session-store key.
	ShortID string `gorm:"type:text;uniqueIndex;not null" json:"id"`
	// OwnerID is the identity of the user that created the room.
	OwnerID string `gorm:"type:text;not null;index" json:"ownerId"`
	// Title is the display name of the room.
	Title string `gorm:"type:text" json:"title"`
	// IsPublic rooms are listed and joinable without a password.
	IsPublic bool `gorm:"not null;default:true" json:"isPublic"`
	// PasswordHash is empty when the room has no password.
	PasswordHash string `gorm:"type:text" json:"-"`
	// CanShareScreen is the default screen-share level: OWNER, ADMIN or ALL.
	CanShareScreen string `gorm:"type:text;not null;default:'ALL'" json:"canShareScreen"`
	// CanStartPresentation is the default presentation level: OWNER, ADMIN or ALL.
	CanStartPresentation string `gorm:"type:text;not null;default:'ALL'" json:"canStartPresentation"`
	// WaitingRoomEnabled gates guest entry on host approval.
	WaitingRoomEnabled bool `gorm:"not null;default:false" json:"waitingRoomEnabled"`
	// ShowHistoryToNewbies sends previous chat messages to newly connected participants.
	ShowHistoryToNewbies bool      `gorm:"not null;default:false" json:"showHistoryToNewbies"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}
