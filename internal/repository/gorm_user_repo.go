package repository

import (
	"context"
	"errors"
	"fmt"

	"tbnt/backend/internal/logging"
	"tbnt/backend/internal/models"

	"gorm.io/gorm"
)

// GormUserRepository implements UserRepository using GORM.
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based user repository.
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %q: %w", username, err)
	}
	return &user, nil
}

func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	return &user, nil
}

func (r *GormUserRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	result := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (r *GormUserRepository) AssignChatColor(ctx context.Context, userID uint, color string) (string, error) {
	l := logging.Ctx(ctx)

	// Conditional update: a concurrent first connect can't overwrite a color
	// that another session already stored.
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND (chat_color = '' OR chat_color IS NULL)", userID).
		Update("chat_color", color)
	if res.Error != nil {
		return "", fmt.Errorf("assign chat color: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		l.Debug().Uint(logging.FieldUserID, userID).Str("chat_color", color).Msg("chat color assigned")
		return color, nil
	}

	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.ChatColor, nil
}
