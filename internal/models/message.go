package models

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeImage
}

// ChatMessage is a persisted chat line. A nil RecipientID means the lobby.
// Rows are never updated except for IsRead.
type ChatMessage struct {
	ID          uint        `gorm:"primaryKey"`
	SenderID    uint        `gorm:"not null;index"`
	RecipientID *uint       `gorm:"index"`
	Content     string      `gorm:"type:text;not null"`
	MessageType MessageType `gorm:"size:20;not null;default:'text'"`
	// CreatedAt is "YYYY-MM-DD HH:MM:SS" in the chat timezone, set by the server.
	CreatedAt string `gorm:"size:19;not null"`
	IsRead    bool   `gorm:"not null;default:false;index"`
}

// IsLobby reports whether the message was sent to the public room.
func (m *ChatMessage) IsLobby() bool {
	return m.RecipientID == nil
}
