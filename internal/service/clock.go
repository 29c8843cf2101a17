package service

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// ChatTimezoneOffset is the fixed offset every chat timestamp is written in.
const ChatTimezoneOffset = 8 * 60 * 60

// TimestampLayout is the wire and storage format of ChatMessage.CreatedAt.
const TimestampLayout = "2006-01-02 15:04:05"

// ChatTimezone is UTC+8 regardless of the host's local zone.
var ChatTimezone = time.FixedZone("UTC+8", ChatTimezoneOffset)

// FormatTimestamp renders t as a chat timestamp in ChatTimezone.
func FormatTimestamp(t time.Time) string {
	return t.In(ChatTimezone).Format(TimestampLayout)
}

// RandomChatColor returns a uniformly random 24-bit color as "#rrggbb".
func RandomChatColor() string {
	return fmt.Sprintf("#%06x", rand.IntN(1<<24))
}
