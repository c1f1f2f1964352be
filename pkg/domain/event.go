package domain

import "time"

// EventType classifies inbound events.
type EventType string

const (
	EventMessage  EventType = "message"
	EventPostback EventType = "postback"
	EventSchedule EventType = "schedule"
)

// Processable reports whether the engine runs a turn for this event type.
// Delivery receipts, typing indicators and the like are ignored.
func (t EventType) Processable() bool {
	switch t {
	case EventMessage, EventPostback, EventSchedule:
		return true
	}
	return false
}

// Event is a single inbound occurrence for a session.
type Event struct {
	Type    EventType `json:"type"`
	Session Session   `json:"session"`

	// Raw is the channel payload handed to the entity extractor.
	Raw any `json:"raw,omitempty"`

	// Entities, when set, bypasses extraction.
	Entities map[string]any `json:"entities,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// Button is a quick reply whose payload is delivered back as entities.
type Button struct {
	Title   string         `json:"title" yaml:"title" mapstructure:"title"`
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty" mapstructure:"payload"`
}

// Message is an outbound chat message. The engine treats it as opaque.
type Message struct {
	Text    string   `json:"text" yaml:"text"`
	Buttons []Button `json:"buttons,omitempty" yaml:"buttons,omitempty"`
}

// TextMessage is shorthand for a plain text message.
func TextMessage(text string) Message {
	return Message{Text: text}
}
