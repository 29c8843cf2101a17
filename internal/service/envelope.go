package service

import "tbnt/backend/internal/models"

// SenderProfile is the author snapshot embedded in every envelope.
type SenderProfile struct {
	ID        uint    `json:"id"`
	Username  string  `json:"username"`
	Nickname  string  `json:"nickname"`
	Avatar    *string `json:"avatar"`
	ChatColor string  `json:"chat_color"`
	Number    int64   `json:"number"`
}

// NewSenderProfile copies the public profile fields of u.
func NewSenderProfile(u *models.User) *SenderProfile {
	return &SenderProfile{
		ID:        u.ID,
		Username:  u.Username,
		Nickname:  u.Nickname,
		Avatar:    u.Avatar,
		ChatColor: u.ChatColor,
		Number:    u.Number,
	}
}

// Envelope is the JSON shape of a chat message pushed to clients and
// returned by the history endpoints. IsRead is only set on history rows.
type Envelope struct {
	ID          uint               `json:"id"`
	Content     string             `json:"content"`
	MessageType models.MessageType `json:"message_type"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	ToUserID    *uint              `json:"to_user_id"`
	IsRead      *bool              `json:"is_read,omitempty"`
	Sender      *SenderProfile     `json:"sender"`
}

// NewEnvelope builds the envelope for msg. sender may be nil when the
// author no longer exists.
func NewEnvelope(msg *models.ChatMessage, sender *SenderProfile) *Envelope {
	return &Envelope{
		ID:          msg.ID,
		Content:     msg.Content,
		MessageType: msg.MessageType,
		CreatedAt:   msg.CreatedAt,
		UserID:      msg.SenderID,
		ToUserID:    msg.RecipientID,
		Sender:      sender,
	}
}

// ErrorFrame is sent to a single session when its message could not be
// processed. The connection stays open.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func newErrorFrame(reason string) ErrorFrame {
	return ErrorFrame{Type: "error", Error: reason}
}
