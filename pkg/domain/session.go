package domain

import (
	"fmt"
	"strings"
)

// Session identifies one conversation on one channel.
// ID has the form "<channel-prefix>_<chat-id>".
type Session struct {
	ID      string         `json:"id"`
	Channel string         `json:"channel"`
	ChatID  string         `json:"chat_id"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// NewSession builds a session from a channel prefix and a chat id.
func NewSession(prefix, channel, chatID string) Session {
	return Session{
		ID:      prefix + "_" + chatID,
		Channel: channel,
		ChatID:  chatID,
	}
}

// ParseSessionID splits a session id into its channel prefix and chat id.
func ParseSessionID(id string) (prefix, chatID string, err error) {
	prefix, chatID, ok := strings.Cut(id, "_")
	if !ok || prefix == "" || chatID == "" {
		return "", "", fmt.Errorf("malformed session id %q: expected <prefix>_<chat-id>", id)
	}
	return prefix, chatID, nil
}
