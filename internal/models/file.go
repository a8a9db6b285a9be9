package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is a durable file record. Recordings produce one File per completed egress.
type File struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`
	// RoomID is the short id of the room the file belongs to.
	RoomID string `gorm:"type:text;not null;index" json:"roomId"`
	// OwnerID is the user that initiated the recording.
	OwnerID string `gorm:"type:text;not null;index" json:"ownerId"`
	// EgressID correlates the file with the media-server recording. Unique so that
	// redelivered completion notifications do not create duplicates.
	EgressID  string    `gorm:"type:text;uniqueIndex" json:"egressId,omitempty"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Location  string    `gorm:"type:text" json:"location"`
	Size      int64     `json:"size"`
	Duration  int64     `json:"duration"`
	Kind      string    `gorm:"type:text;not null;default:'recording'" json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// BeforeCreate generates an ID for the file if it is not already set.
func (f *File) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return
}
