package service

import "errors"

var (
	ErrAuthFailed    = errors.New("chat authentication failed")
	ErrPersistFailed = errors.New("failed to save message")
	ErrUserNotFound  = errors.New("user not found")
	ErrInvalidFriend = errors.New("cannot open a private thread with yourself")

	ErrInvalidRecipient = errors.New("invalid recipient")
)
