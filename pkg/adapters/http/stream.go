package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/aretw0/golem/internal/logging"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/aretw0/golem/pkg/ports"
)

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- string]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager. A nil logger discards output.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a listener for a session. Call the returned function to leave.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[sessionID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, sessionID)
			}
		}
	}
}

// Subscribers returns the number of listeners of a session.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// Broadcast sends msg to every listener of the session. Slow listeners lose messages.
func (sm *StreamManager) Broadcast(sessionID string, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// StreamEvent is the payload of one SSE data line.
type StreamEvent struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message,omitempty"`
	State   string          `json:"state,omitempty"`
}

// Channel is the web chat channel: bot output is pushed to the session's SSE listeners.
type Channel struct {
	name    string
	streams *StreamManager
}

var _ ports.Channel = (*Channel)(nil)

// NewChannel creates a channel named name, also used as session prefix.
func NewChannel(name string, streams *StreamManager) *Channel {
	return &Channel{name: name, streams: streams}
}

func (c *Channel) Name() string   { return c.name }
func (c *Channel) Prefix() string { return c.name }

func (c *Channel) ProcessingStart(ctx context.Context, s domain.Session) error {
	return c.push(s.ID, StreamEvent{Type: "typing_on"})
}

func (c *Channel) ProcessingEnd(ctx context.Context, s domain.Session) error {
	return c.push(s.ID, StreamEvent{Type: "typing_off"})
}

func (c *Channel) PostMessage(ctx context.Context, s domain.Session, msg domain.Message) error {
	return c.push(s.ID, StreamEvent{Type: "message", Message: &msg})
}

func (c *Channel) StateChange(ctx context.Context, s domain.Session, state string) error {
	return c.push(s.ID, StreamEvent{Type: "state", State: state})
}

func (c *Channel) push(sessionID string, ev StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	c.streams.Broadcast(sessionID, string(data))
	return nil
}
