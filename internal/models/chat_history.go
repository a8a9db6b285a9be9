package models

import "gorm.io/gorm"

// ChatHistory represents a saved chat message in the PostgreSQL database.
// The embedded gorm.Model provides ID, CreatedAt, UpdatedAt, and DeletedAt fields,
// which serve as the message ID and timestamps.
type ChatHistory struct {
	gorm.Model

	// RoomID is the short id of the room where the message was sent.
	RoomID string `gorm:"type:text;not null;index:idx_room_msg"`
	// SenderID is the identity of the user who sent the message.
	SenderID string `gorm:"type:text;not null;index:idx_room_msg"`
	// SenderName is the display name at the time the message was sent.
	SenderName string `gorm:"type:text"`
	// Content is the message text.
	Content string `gorm:"type:text;not null"`
}

// ChatMessage is the wire form of a chat message.
type ChatMessage struct {
	ID         uint   `json:"id"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
	CreatedAt  int64  `json:"createdAt"`
}

// ToChatMessage converts a stored history row to its wire form.
func (h *ChatHistory) ToChatMessage() ChatMessage {
	return ChatMessage{
		ID:         h.ID,
		SenderID:   h.SenderID,
		SenderName: h.SenderName,
		Message:    h.Content,
		CreatedAt:  h.CreatedAt.UnixMilli(),
	}
}
