package service

import (
	"bytes"
	"fmt"
	"strconv"

	"tbnt/backend/internal/models"

	"github.com/goccy/go-json"
)

// Frame is one inbound chat message after parsing.
type Frame struct {
	Content     string
	MessageType models.MessageType
	// RecipientID is nil for the lobby.
	RecipientID *uint
}

// ParseFrame decodes raw. A payload that is not a JSON object is treated as a
// lobby text message whose content is the raw payload. Inside an object each
// field is read on its own: content of another JSON type keeps its JSON text,
// an unknown type becomes text, and to_user_id may be a number or a numeric
// string. A to_user_id that is present but not a valid id returns an error
// wrapping ErrInvalidRecipient; such a frame is never sent to the lobby.
func ParseFrame(raw []byte) (Frame, error) {
	lobbyText := Frame{Content: string(raw), MessageType: models.MessageTypeText}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return lobbyText, nil
	}

	frame := Frame{
		Content:     contentField(fields["content"]),
		MessageType: models.MessageTypeText,
	}

	var msgType string
	if err := json.Unmarshal(fields["type"], &msgType); err == nil && models.MessageType(msgType).Valid() {
		frame.MessageType = models.MessageType(msgType)
	}

	if to, ok := fields["to_user_id"]; ok {
		id, err := recipientField(to)
		if err != nil {
			return Frame{}, err
		}
		if id != 0 {
			frame.RecipientID = &id
		}
	}
	return frame, nil
}

func contentField(v json.RawMessage) string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

// recipientField returns 0 for null or 0, which both address the lobby.
func recipientField(v json.RawMessage) (uint, error) {
	v = bytes.TrimSpace(v)
	if bytes.Equal(v, []byte("null")) {
		return 0, nil
	}

	text := string(v)
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		text = s
	}

	id, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: to_user_id %s", ErrInvalidRecipient, v)
	}
	return uint(id), nil
}
