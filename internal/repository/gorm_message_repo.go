package repository

import (
	"context"
	"fmt"

	"tbnt/backend/internal/logging"
	"tbnt/backend/internal/models"

	"gorm.io/gorm"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create inserts msg and fills in its ID.
func (r *GormMessageRepository) Create(ctx context.Context, msg *models.ChatMessage) error {
	l := logging.Ctx(ctx)

	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		l.Error().Err(err).Uint("sender_id", msg.SenderID).Msg("failed to create chat message")
		return fmt.Errorf("create chat message: %w", err)
	}
	l.Debug().Uint(logging.FieldMessageID, msg.ID).Msg("chat message created")
	return nil
}

func (r *GormMessageRepository) ListLobby(ctx context.Context, offset, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("recipient_id IS NULL").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list lobby messages: %w", err)
	}
	return messages, nil
}

func (r *GormMessageRepository) ListPrivate(ctx context.Context, userID, peerID uint, offset, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)", userID, peerID, peerID, userID).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list private messages: %w", err)
	}
	return messages, nil
}

func (r *GormMessageRepository) MarkRead(ctx context.Context, recipientID, senderID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Where("sender_id = ? AND recipient_id = ? AND is_read = ?", senderID, recipientID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark messages read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GormMessageRepository) UnreadCounts(ctx context.Context, recipientID uint) (map[uint]int64, error) {
	var rows []struct {
		SenderID uint
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&models.ChatMessage{}).
		Select("sender_id, COUNT(*) AS count").
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count unread messages: %w", err)
	}

	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		if row.Count > 0 {
			counts[row.SenderID] = row.Count
		}
	}
	return counts, nil
}

var _ MessageRepository = (*GormMessageRepository)(nil)
var _ UserRepository = (*GormUserRepository)(nil)
