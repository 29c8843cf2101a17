package repository

import (
	"context"

	"tbnt/backend/internal/models"
)

// UserRepository is the user directory the chat core reads identities from.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	// FindByIDs returns the users that exist, keyed by id. Missing ids are absent.
	FindByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error)
	// AssignChatColor stores color only if the user has none yet and returns
	// the color the user ends up with.
	AssignChatColor(ctx context.Context, userID uint, color string) (string, error)
}

// MessageRepository persists chat messages. History queries return rows
// newest first.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.ChatMessage) error
	ListLobby(ctx context.Context, offset, limit int) ([]models.ChatMessage, error)
	ListPrivate(ctx context.Context, userID, peerID uint, offset, limit int) ([]models.ChatMessage, error)
	// MarkRead flags every unread message from sender to recipient and returns
	// how many rows changed.
	MarkRead(ctx context.Context, recipientID, senderID uint) (int64, error)
	// UnreadCounts maps sender id to the number of unread messages addressed
	// to recipientID. Senders with nothing unread are absent.
	UnreadCounts(ctx context.Context, recipientID uint) (map[uint]int64, error)
}
