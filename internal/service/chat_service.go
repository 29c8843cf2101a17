package service

import (
	"context"
	"errors"
	"fmt"

	"tbnt/backend/internal/auth"
	"tbnt/backend/internal/hub"
	"tbnt/backend/internal/logging"
	"tbnt/backend/internal/metrics"
	"tbnt/backend/internal/models"
	"tbnt/backend/internal/repository"

	"github.com/goccy/go-json"
)

// ChatOptions tunes session behavior.
type ChatOptions struct {
	// CloseSuperseded closes a user's previous channel when the same user
	// connects again. When false the old socket stays open, no longer
	// registered, until it disconnects on its own.
	CloseSuperseded bool
}

// ChatService runs chat sessions: it authenticates a connection, registers
// it and feeds its frames to the Router until the connection ends.
type ChatService struct {
	verifier auth.TokenVerifier
	users    repository.UserRepository
	registry *hub.Registry
	router   *Router
	opts     ChatOptions
	newColor func() string
}

// NewChatService creates a ChatService.
func NewChatService(verifier auth.TokenVerifier, users repository.UserRepository, registry *hub.Registry, router *Router, opts ChatOptions) *ChatService {
	return &ChatService{
		verifier: verifier,
		users:    users,
		registry: registry,
		router:   router,
		opts:     opts,
		newColor: RandomChatColor,
	}
}

// Authenticate resolves token to a user and makes sure the user has a chat
// color. A color, once stored, is never replaced.
func (s *ChatService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	username, err := s.verifier.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: unknown user %q", ErrAuthFailed, username)
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	if user.ChatColor == "" {
		color, err := s.users.AssignChatColor(ctx, user.ID, s.newColor())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		user.ChatColor = color
	}
	return user, nil
}

// Serve runs one session on conn until the peer disconnects or the transport
// fails. A connection that fails authentication is closed with a policy
// violation and an error wrapping ErrAuthFailed is returned. A normal close
// returns nil.
func (s *ChatService) Serve(ctx context.Context, conn hub.Conn, token string) error {
	l := logging.Ctx(ctx)

	user, err := s.Authenticate(ctx, token)
	if err != nil {
		metrics.ChatSessionsRejected.Inc()
		conn.Close(hub.ClosePolicyViolation, "authentication failed")
		return err
	}

	l = l.With().Uint(logging.FieldUserID, user.ID).Str(logging.FieldUsername, user.Username).Logger()
	ctx = logging.WithLogger(ctx, l)

	if prev := s.registry.Register(user.ID, conn); prev != nil {
		metrics.ChatSessionsSuperseded.Inc()
		l.Info().Msg("chat session superseded by a new connection")
		if s.opts.CloseSuperseded {
			prev.Close(hub.ClosePolicyViolation, "session superseded")
		}
	}
	metrics.TrackSession(true)
	l.Info().Int("online", s.registry.Count()).Msg("chat session opened")

	defer func() {
		metrics.TrackSession(false)
		s.registry.Unregister(user.ID, conn)
		conn.Close(hub.CloseNormal, "")
		l.Info().Int("online", s.registry.Count()).Msg("chat session closed")
	}()

	// Closing this connection must not cut short a write or a fan-out that
	// is already underway.
	work := context.WithoutCancel(ctx)

	for {
		raw, err := conn.Receive()
		if err != nil {
			if hub.IsExpectedClose(err) {
				return nil
			}
			return fmt.Errorf("receive: %w", err)
		}

		if _, err := s.router.Route(work, user, conn, raw); err != nil {
			l.Error().Err(err).Msg("failed to route chat message")
			s.reportError(ctx, conn, err)
		}
	}
}

func (s *ChatService) reportError(ctx context.Context, conn hub.Conn, err error) {
	reason := "internal error"
	switch {
	case errors.Is(err, ErrPersistFailed):
		reason = ErrPersistFailed.Error()
	case errors.Is(err, ErrInvalidRecipient):
		reason = ErrInvalidRecipient.Error()
	}

	payload, mErr := json.Marshal(newErrorFrame(reason))
	if mErr != nil {
		return
	}
	if sErr := conn.Send(payload); sErr != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(sErr).Msg("failed to report error to chat session")
	}
}
