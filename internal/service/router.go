package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"tbnt/backend/internal/hub"
	"tbnt/backend/internal/logging"
	"tbnt/backend/internal/metrics"
	"tbnt/backend/internal/models"
	"tbnt/backend/internal/repository"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// Router persists inbound frames and delivers the resulting envelope to the
// lobby or to the two parties of a private conversation.
type Router struct {
	messages repository.MessageRepository
	users    repository.UserRepository
	registry *hub.Registry
	fanout   int
	now      func() time.Time
}

// NewRouter creates a Router. fanout bounds how many channels are written to
// concurrently during a broadcast.
func NewRouter(messages repository.MessageRepository, users repository.UserRepository, registry *hub.Registry, fanout int) *Router {
	if fanout < 1 {
		fanout = 1
	}
	return &Router{
		messages: messages,
		users:    users,
		registry: registry,
		fanout:   fanout,
		now:      time.Now,
	}
}

// Route handles one raw frame sent by sender over origin, the channel the
// frame arrived on; origin receives the sender's copy. A nil origin falls back
// to the sender's registered channel. The message is stored before any
// delivery is attempted; if storing fails nothing is delivered and an error
// wrapping ErrPersistFailed is returned. A frame with an unusable recipient
// is dropped with an error wrapping ErrInvalidRecipient. Delivery problems
// are logged and never returned.
func (r *Router) Route(ctx context.Context, sender *models.User, origin hub.Channel, raw []byte) (*Envelope, error) {
	frame, err := ParseFrame(raw)
	if err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		SenderID:    sender.ID,
		RecipientID: frame.RecipientID,
		Content:     frame.Content,
		MessageType: frame.MessageType,
		CreatedAt:   FormatTimestamp(r.now()),
	}
	if err := r.messages.Create(ctx, msg); err != nil {
		metrics.ChatPersistFailures.Inc()
		return nil, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	env := NewEnvelope(msg, r.senderProfile(ctx, sender))
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	start := time.Now()
	r.deliver(ctx, msg, r.targets(msg, sender.ID, origin), payload)
	metrics.RecordMessageRouted(msg.IsLobby(), time.Since(start))
	return env, nil
}

// senderProfile reads the sender's current profile so every envelope carries
// fresh display fields. The session's copy is used if the lookup fails.
func (r *Router) senderProfile(ctx context.Context, sender *models.User) *SenderProfile {
	current, err := r.users.FindByID(ctx, sender.ID)
	if err != nil {
		l := logging.Ctx(ctx)
		l.Warn().Err(err).Uint(logging.FieldUserID, sender.ID).Msg("using cached sender profile")
		return NewSenderProfile(sender)
	}
	return NewSenderProfile(current)
}

// targets picks the channels msg goes to: the origin and the recipient for a
// private message, everyone plus the origin for the lobby. Offline users are
// skipped and no channel is listed twice.
func (r *Router) targets(msg *models.ChatMessage, senderID uint, origin hub.Channel) []hub.Channel {
	if origin == nil {
		if ch, ok := r.registry.Lookup(senderID); ok {
			origin = ch
		}
	}

	var targets []hub.Channel
	if msg.IsLobby() {
		targets = r.registry.Channels()
	} else if ch, ok := r.registry.Lookup(*msg.RecipientID); ok {
		targets = append(targets, ch)
	}

	if origin != nil && !slices.Contains(targets, origin) {
		targets = append(targets, origin)
	}
	return targets
}

func (r *Router) deliver(ctx context.Context, msg *models.ChatMessage, targets []hub.Channel, payload []byte) {
	l := logging.Ctx(ctx)

	var g errgroup.Group
	g.SetLimit(r.fanout)
	for _, ch := range targets {
		g.Go(func() error {
			if err := ch.Send(payload); err != nil {
				metrics.ChatDeliveryFailures.Inc()
				l.Warn().Err(err).Uint(logging.FieldMessageID, msg.ID).Msg("failed to deliver chat message")
			}
			return nil
		})
	}
	g.Wait()

	l.Debug().
		Uint(logging.FieldMessageID, msg.ID).
		Bool("lobby", msg.IsLobby()).
		Int("targets", len(targets)).
		Msg("chat message delivered")
}
