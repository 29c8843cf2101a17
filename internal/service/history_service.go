package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"tbnt/backend/internal/models"
	"tbnt/backend/internal/repository"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// HistoryService answers the read-side chat queries: lobby and private
// history, unread counts and marking a thread read.
type HistoryService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(messages repository.MessageRepository, users repository.UserRepository) *HistoryService {
	return &HistoryService{messages: messages, users: users}
}

// LobbyHistory returns up to limit lobby messages, skipping the offset most
// recent ones, oldest first.
func (s *HistoryService) LobbyHistory(ctx context.Context, offset, limit int) ([]*Envelope, error) {
	offset, limit = normalizePage(offset, limit)

	messages, err := s.messages.ListLobby(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.withSenders(ctx, messages)
}

// PrivateHistory returns the conversation between selfID and friendID in
// both directions, paginated like LobbyHistory.
func (s *HistoryService) PrivateHistory(ctx context.Context, selfID, friendID uint, offset, limit int) ([]*Envelope, error) {
	if err := s.checkFriend(ctx, selfID, friendID); err != nil {
		return nil, err
	}
	offset, limit = normalizePage(offset, limit)

	messages, err := s.messages.ListPrivate(ctx, selfID, friendID, offset, limit)
	if err != nil {
		return nil, err
	}
	return s.withSenders(ctx, messages)
}

// MarkRead flags every unread message friendID sent to selfID as read and
// returns how many changed. Calling it again changes nothing.
func (s *HistoryService) MarkRead(ctx context.Context, selfID, friendID uint) (int64, error) {
	if err := s.checkFriend(ctx, selfID, friendID); err != nil {
		return 0, err
	}
	return s.messages.MarkRead(ctx, selfID, friendID)
}

// UnreadCounts maps each sender with unread private messages for selfID to
// the number of those messages.
func (s *HistoryService) UnreadCounts(ctx context.Context, selfID uint) (map[uint]int64, error) {
	return s.messages.UnreadCounts(ctx, selfID)
}

func (s *HistoryService) checkFriend(ctx context.Context, selfID, friendID uint) error {
	if friendID == selfID {
		return ErrInvalidFriend
	}
	if _, err := s.users.FindByID(ctx, friendID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%w: %d", ErrUserNotFound, friendID)
		}
		return err
	}
	return nil
}

// withSenders reverses newest-first rows into chronological order and
// attaches sender profiles fetched in a single lookup.
func (s *HistoryService) withSenders(ctx context.Context, messages []models.ChatMessage) ([]*Envelope, error) {
	slices.Reverse(messages)

	ids := make([]uint, 0, len(messages))
	seen := make(map[uint]struct{}, len(messages))
	for _, m := range messages {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}

	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]*Envelope, len(messages))
	for i := range messages {
		var sender *SenderProfile
		if u, ok := users[messages[i].SenderID]; ok {
			sender = NewSenderProfile(&u)
		}
		env := NewEnvelope(&messages[i], sender)
		env.IsRead = &messages[i].IsRead
		result[i] = env
	}
	return result, nil
}

func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return offset, limit
}
